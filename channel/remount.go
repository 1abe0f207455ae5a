package channel

import (
	"context"
	"errors"
	"time"

	"github.com/moffa90/go-daplink/internal/poll"
	"github.com/moffa90/go-daplink/report"
)

// WaitForRemount waits for the drive to dismount and mount again.
//
// The dismount wait ends early when an info update shows the device already
// remounted, i.e. its mode or remount count changed. The mount wait only
// ends when two consecutive lookups return the same mount point, since
// discovery data can be stale. Exceeding the remount timeout in either wait
// returns ErrDismountTimeout or ErrMountTimeout.
//
// When both the old and new remount counts are known, the new count must be
// 0 after a mode change and old+1 otherwise; a mismatch is recorded as a
// failure in parent, not returned.
func (c *Channel) WaitForRemount(ctx context.Context, parent *report.Test) error {
	mode := c.Mode()
	count, countKnown := c.RemountCount()
	t := subtest(parent, "wait_for_remount")

	remounted := false
	start := time.Now()
	err := poll.Until(ctx, c.config.RemountTimeout, c.config.PollInterval, func() (bool, error) {
		if !c.Connected() {
			return true, nil
		}
		if ok, _ := c.UpdateInfo(ctx, false); ok {
			newMode := c.Mode()
			newCount, newCountKnown := c.RemountCount()
			switch {
			case mode != "" && newMode != mode:
				t.Info("already remounted with change mode")
				remounted = true
			case countKnown && newCountKnown && newCount != count:
				t.Info("already remounted with change mount count")
				remounted = true
			}
		}
		return remounted, nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		return ErrDismountTimeout
	}
	if err != nil {
		return err
	}
	if !remounted {
		t.Info("unmount took %s", time.Since(start))
	}

	if !remounted {
		start = time.Now()
		err = poll.Until(ctx, c.config.RemountTimeout, c.config.PollInterval, func() (bool, error) {
			if ok, _ := c.UpdateInfo(ctx, false); !ok || !c.Connected() {
				return false, nil
			}
			mountPoint := c.mountPoint
			ok, _ := c.UpdateInfo(ctx, false)
			return ok && mountPoint == c.mountPoint, nil
		})
		if errors.Is(err, poll.ErrTimeout) {
			return ErrMountTimeout
		}
		if err != nil {
			return err
		}
		t.Info("mount took %s", time.Since(start))
	}
	c.logInfo("remounted", "unique_id", c.uniqueID, "mode", c.Mode())

	if newCount, ok := c.RemountCount(); countKnown && ok {
		expected := count + 1
		if c.Mode() != mode {
			expected = 0
		}
		if newCount != expected {
			t.Failure("Expected remount count of %d got %d", expected, newCount)
		}
	}

	if c.config.CheckFSOnRemount {
		if err := c.CheckFilesystem(parent); err != nil {
			return err
		}
		if c.config.AssertAutoManage {
			if a := c.assert; a != nil {
				t.Failure("Assert on line %s in file %s", a.Line, a.File)
			}
			if err := c.ClearAssert(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
