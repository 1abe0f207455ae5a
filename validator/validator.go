package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moffa90/go-daplink/channel"
	"github.com/moffa90/go-daplink/image"
	"github.com/moffa90/go-daplink/protocol"
	"github.com/moffa90/go-daplink/report"
)

// MemoryReader reads target memory through a debug probe.
type MemoryReader interface {
	ReadTargetMemory(ctx context.Context, addr uint32, n int) ([]byte, error)
}

// Validator runs update scenarios against one device.
//
// A Validator serializes its scenarios on the device channel; independent
// devices can be validated concurrently with RunBoards.
type Validator struct {
	ch     *channel.Channel
	config Config
}

// New creates a Validator for the device behind ch.
//
// Example:
//
//	ch, _ := channel.New(ctx, afero.NewOsFs(), disc, uniqueID)
//	v := validator.New(ch,
//	    validator.WithProgressCallback(progressFunc),
//	    validator.WithRetries(3, 10*time.Second),
//	)
func New(ch *channel.Channel, opts ...Option) *Validator {
	if ch == nil {
		panic("channel cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Validator{
		ch:     ch,
		config: cfg,
	}
}

// Channel returns the device channel.
func (v *Validator) Channel() *channel.Channel {
	return v.ch
}

// Run executes sc and returns its report. The report is attached to
// parent when parent is not nil and the scenario completed.
//
// A scenario is retried when an attempt hits a transient I/O error, which
// happens when the drive goes away under a write. The device info is
// re-read before every retry. ErrRetriesExhausted is returned once every
// attempt failed that way. Scenario mismatches are not errors: they are
// recorded as failures in the returned report.
func (v *Validator) Run(ctx context.Context, sc Scenario, parent *report.Test) (*report.Test, error) {
	v.ch.Lock()
	defer v.ch.Unlock()

	var (
		t       *report.Test
		attempt int
	)
	op := func() error {
		attempt++
		if attempt > 1 {
			if _, err := v.ch.UpdateInfo(ctx, true); err != nil {
				return backoff.Permanent(fmt.Errorf("update device info: %w", err))
			}
		}
		t = report.New(sc.Name, v.config.ReportLogger)
		if attempt > 1 {
			t.Info("Previous attempts %d", attempt-1)
		}

		err := v.run(ctx, sc, t, attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isTransient(err, v.ch.MountPoint()) {
			return backoff.Permanent(err)
		}
		v.logError("transient error",
			"scenario", sc.Name,
			"attempt", attempt,
			"error", err,
		)
		return err
	}

	retries := uint64(0)
	if v.config.Attempts > 1 {
		retries = uint64(v.config.Attempts - 1)
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(v.config.RetryDelay), retries),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() == nil && isTransient(err, v.ch.MountPoint()) {
			return t, fmt.Errorf("%w: %d attempts: %v", ErrRetriesExhausted, attempt, err)
		}
		return t, err
	}

	if parent != nil {
		parent.Attach(t)
	}
	return t, nil
}

// run is one attempt of sc.
func (v *Validator) run(ctx context.Context, sc Scenario, t *report.Test, attempt int) error {
	start := time.Now()
	progress := func(phase string, written, total int) {
		p := Progress{
			Scenario:     sc.Name,
			Attempt:      attempt,
			Phase:        phase,
			BytesWritten: written,
			TotalBytes:   total,
			ElapsedTime:  time.Since(start),
		}
		if total > 0 {
			p.Percentage = float64(written) / float64(total) * 100
		}
		v.reportProgress(p)
	}

	if sc.Mode != "" {
		progress(PhaseMode, 0, 0)
		if err := v.ch.SetMode(ctx, sc.Mode, t); err != nil {
			return err
		}
	}
	mode := v.ch.Mode()

	if err := sleep(ctx, v.config.SettleDelay); err != nil {
		return err
	}

	if err := v.writeMocks(sc.MockDirs, sc.MockFiles); err != nil {
		return fmt.Errorf("write mock files: %w", err)
	}

	v.logDebug("transfer", "scenario", sc.Name, "strategy", strategyName(sc.Strategy))
	loadStart := time.Now()
	n, err := v.transfer(ctx, sc, func(written, total int) {
		progress(PhaseTransfer, written, total)
	})
	if err != nil {
		return err
	}
	loadTime := time.Since(loadStart)
	t.Info("Loading took %s", loadTime)
	if secs := loadTime.Seconds(); secs > 0 {
		t.Info("Programming rate %.3f KiB/s", float64(n)/1024/secs)
	}

	if err := v.writeMocks(sc.MockDirsAfter, sc.MockFilesAfter); err != nil {
		return fmt.Errorf("write mock files: %w", err)
	}

	progress(PhaseRemount, n, n)
	if err := v.ch.WaitForRemount(ctx, t); err != nil {
		return err
	}
	if !v.ch.CheckFSOnRemount() {
		if err := v.ch.CheckFilesystem(t); err != nil {
			return err
		}
	}

	progress(PhaseVerify, n, n)
	actual, err := v.evaluate(ctx, sc, mode, t)
	if err != nil {
		return err
	}

	if sc.ExpectedMode != "" && actual != sc.ExpectedMode {
		t.Failure("Wrong mode after test - Expected %s got %s", sc.ExpectedMode, actual)
	}
	progress(PhaseComplete, n, n)
	return nil
}

// evaluate checks the device state against sc.Expect and returns the mode
// the device was in when the outcome was checked.
func (v *Validator) evaluate(ctx context.Context, sc Scenario, mode protocol.Mode, t *report.Test) (protocol.Mode, error) {
	failure, err := v.ch.FailureMessage()
	if err != nil {
		return "", fmt.Errorf("read failure: %w", err)
	}

	expected, _ := sc.Expect.(Failure)
	switch {
	case failure != nil && expected.Message == "":
		t.Failure("Device reported failure: \"%s\"", failure.Message)
	case failure == nil && expected.Message != "":
		t.Failure("Failure expected but did not occur")
	case failure != nil:
		switch {
		case failure.Message == expected.Message && failure.Category == expected.Category:
			t.Info("Failure as expected: \"%s, %s\"", failure.Message, failure.Category)
		case failure.Message != expected.Message:
			t.Failure("Failure but wrong string: \"%s\" vs \"%s\"", failure.Message, expected.Message)
		default:
			t.Failure("Failure but wrong type: \"%s\" vs \"%s\"", failure.Category, expected.Category)
		}
	}

	success, ok := sc.Expect.(Success)
	if !ok || failure != nil || len(success.Data) == 0 {
		return v.ch.Mode(), nil
	}

	switch c := success.Check.(type) {
	case CheckCRC:
		return v.checkCRC(ctx, c, success.Data, mode, t)
	case CheckMemory, nil:
		if v.config.MemoryReader == nil {
			return "", ErrNoMemoryReader
		}
		got, err := v.config.MemoryReader.ReadTargetMemory(ctx, success.Start, len(success.Data))
		if err != nil {
			return "", fmt.Errorf("read target memory: %w", err)
		}
		if bytes.Equal(got, success.Data) {
			t.Info("Data matches")
		} else {
			t.Failure("Data does not match")
		}
		return v.ch.Mode(), nil
	default:
		return "", fmt.Errorf("unsupported check %T", c)
	}
}

// checkCRC records the device mode, switches back to the scenario mode to
// read the CRC the device computed over the updated firmware, and compares
// it with the CRC of the expected image.
func (v *Validator) checkCRC(ctx context.Context, c CheckCRC, data []byte, mode protocol.Mode, t *report.Test) (protocol.Mode, error) {
	actual := v.ch.Mode()
	if err := v.ch.SetMode(ctx, mode, t); err != nil {
		var me *channel.ModeError
		if !errors.As(err, &me) {
			return "", err
		}
		t.Failure("Could not return to %s mode", mode)
		return actual, nil
	}

	if len(data) < image.CRCSize {
		t.Failure("Expected data too short for CRC")
		return actual, nil
	}
	key := c.Key
	if key == "" {
		key = mode.CRCKey()
	}
	details := v.ch.Details()
	if details == nil {
		t.Failure("Could not read %s", protocol.FileDetails)
		return actual, nil
	}
	crc, ok, err := details.CRC(key)
	if err != nil {
		t.Failure("Invalid %s: %v", key, err)
		return actual, nil
	}
	if !ok {
		t.Failure("No %s in %s", key, protocol.FileDetails)
		return actual, nil
	}

	expected := image.CRC32(data[:len(data)-image.CRCSize])
	t.Info("Expected CRC: 0x%08x, actual crc: 0x%08x", expected, crc)
	if crc == expected {
		t.Info("Data matches")
	} else {
		t.Failure("Data does not match")
	}
	return actual, nil
}

func strategyName(s Strategy) string {
	if s == nil {
		return Write{}.String()
	}
	return s.String()
}

// reportProgress calls the progress callback if configured.
func (v *Validator) reportProgress(progress Progress) {
	if v.config.ProgressCallback != nil {
		v.config.ProgressCallback(progress)
	}
}

func (v *Validator) logDebug(msg string, keysAndValues ...interface{}) {
	if v.config.Logger != nil {
		v.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (v *Validator) logInfo(msg string, keysAndValues ...interface{}) {
	if v.config.Logger != nil {
		v.config.Logger.Info(msg, keysAndValues...)
	}
}

func (v *Validator) logError(msg string, keysAndValues ...interface{}) {
	if v.config.Logger != nil {
		v.config.Logger.Error(msg, keysAndValues...)
	}
}
