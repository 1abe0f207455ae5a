package channel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/moffa90/go-daplink/protocol"
	"github.com/moffa90/go-daplink/report"
)

// Channel is the update channel of one DAPLink device.
//
// A Channel is not safe for concurrent use. Callers running scenarios
// against the same device from several goroutines serialize them with Lock
// and Unlock.
type Channel struct {
	fs     afero.Fs
	disc   Discovery
	config Config

	busy sync.Mutex

	uniqueID   string
	serialPort string
	mountPoint string
	details    *protocol.Details
	assert     *protocol.Assert
}

// New creates a Channel for the device with the given unique id and reads
// its initial state. It fails if the device cannot be found or does not
// report a mode.
//
// Example:
//
//	fs := afero.NewOsFs()
//	ch, err := channel.New(ctx, fs, channel.NewMountDiscovery(fs, uid, "/media/DAPLINK"), uid,
//	    channel.WithRemountTimeout(2*time.Minute),
//	)
func New(ctx context.Context, fs afero.Fs, disc Discovery, uniqueID string, opts ...Option) (*Channel, error) {
	if fs == nil || disc == nil {
		return nil, fmt.Errorf("filesystem and discovery are required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Channel{
		fs:       fs,
		disc:     disc,
		config:   cfg,
		uniqueID: uniqueID,
	}
	ok, err := c.UpdateInfo(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("update board info: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("board %s does not report a mode: %w", uniqueID, protocol.ErrNoMode)
	}
	return c, nil
}

// Lock reserves the device for one scenario.
func (c *Channel) Lock() { c.busy.Lock() }

// Unlock releases the device.
func (c *Channel) Unlock() { c.busy.Unlock() }

// Fs returns the filesystem the drive is accessed through.
func (c *Channel) Fs() afero.Fs { return c.fs }

// UniqueID returns the unique id reported by discovery. It changes between
// modes.
func (c *Channel) UniqueID() string { return c.uniqueID }

// SerialPort returns the serial port reported by discovery.
func (c *Channel) SerialPort() string { return c.serialPort }

// MountPoint returns the current mount point of the drive.
func (c *Channel) MountPoint() string { return c.mountPoint }

// BoardID returns the board id encoded in the unique id.
func (c *Channel) BoardID() (uint16, error) { return protocol.BoardID(c.uniqueID) }

// Details returns the last DETAILS.TXT snapshot, or nil when it could not
// be read.
func (c *Channel) Details() *protocol.Details { return c.details }

// Assert returns the content of ASSERT.TXT at the last update, or nil.
func (c *Channel) Assert() *protocol.Assert { return c.assert }

// Mode returns the mode at the last update, or "" when unknown.
func (c *Channel) Mode() protocol.Mode {
	if c.details == nil {
		return ""
	}
	return c.details.Mode
}

// RemountCount returns the remount count at the last update, if reported.
func (c *Channel) RemountCount() (uint32, bool) {
	if c.details == nil || c.details.RemountCount == nil {
		return 0, false
	}
	return *c.details.RemountCount, true
}

// Path returns the path of name on the drive.
func (c *Channel) Path(name string) string {
	return filepath.Join(c.mountPoint, name)
}

// Connected reports whether the drive is mounted.
func (c *Channel) Connected() bool {
	if c.mountPoint == "" {
		return false
	}
	ok, _ := afero.DirExists(c.fs, c.mountPoint)
	return ok
}

// FileExists reports whether name is present on the drive. The lookup is
// case-insensitive, as on the FAT filesystem the device exposes.
func (c *Channel) FileExists(name string) bool {
	_, ok := findFile(c.fs, c.mountPoint, name)
	return ok
}

// UpdateInfo re-resolves the device endpoints and re-reads DETAILS.TXT and
// ASSERT.TXT. It returns false when the device does not report a mode yet,
// which happens while it is still publishing its files. With strict unset,
// every other failure also returns false instead of an error. The details
// snapshot is cleared when it cannot be read.
func (c *Channel) UpdateInfo(ctx context.Context, strict bool) (bool, error) {
	ok, err := c.updateInfo(ctx)
	if err != nil {
		if strict {
			return false, err
		}
		c.logDebug("update board info failed", "unique_id", c.uniqueID, "error", err)
		return false, nil
	}
	return ok, nil
}

func (c *Channel) updateInfo(ctx context.Context) (bool, error) {
	ep, err := Lookup(ctx, c.disc, c.uniqueID)
	if err != nil {
		return false, err
	}
	if ep == nil {
		return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, c.uniqueID)
	}
	if ep.UniqueID == "" || ep.MountPoint == "" {
		return false, ErrNoMountPoint
	}
	c.uniqueID, c.serialPort, c.mountPoint = ep.UniqueID, ep.SerialPort, ep.MountPoint

	c.details = nil
	kvp, err := c.readKVP(protocol.FileDetails)
	if err != nil {
		return false, err
	}
	if err := c.readAssert(); err != nil {
		return false, err
	}
	d, err := protocol.DetailsFromKVP(kvp)
	if errors.Is(err, protocol.ErrNoMode) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.details = d
	return true, nil
}

func (c *Channel) readKVP(name string) (map[string]string, error) {
	path, ok := findFile(c.fs, c.mountPoint, name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	kvp, _, err := protocol.ParseKVP(f, name)
	return kvp, err
}

func (c *Channel) readAssert() error {
	c.assert = nil
	path, ok := findFile(c.fs, c.mountPoint, protocol.FileAssert)
	if !ok {
		return nil
	}
	f, err := c.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	a, err := protocol.ParseAssert(f)
	if err != nil {
		return err
	}
	c.assert = a
	return nil
}

// FailureMessage returns the content of FAIL.TXT, or nil when the last
// update did not fail.
func (c *Channel) FailureMessage() (*protocol.Failure, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}
	path, ok := findFile(c.fs, c.mountPoint, protocol.FileFail)
	if !ok {
		return nil, nil
	}
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return protocol.ParseFailure(f)
}

// CreateMarker creates the empty control file name on the drive.
func (c *Channel) CreateMarker(name string) error {
	if err := afero.WriteFile(c.fs, c.Path(name), nil, 0o644); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	return nil
}

// Refresh makes the device remount its drive and re-publish its files
// without changing mode.
func (c *Channel) Refresh(ctx context.Context, parent *report.Test) error {
	if err := c.CreateMarker(protocol.MarkerRefresh); err != nil {
		return err
	}
	return c.WaitForRemount(ctx, parent)
}

// SetMode switches the device to mode. It is a no-op when the device is
// already in mode. A device that remounts in another mode is a protocol
// violation and returns a *ModeError.
func (c *Channel) SetMode(ctx context.Context, mode protocol.Mode, parent *report.Test) error {
	t := subtest(parent, "set_mode")
	current := c.Mode()
	if current == mode {
		return nil
	}

	t.Info("changing mode %s -> %s", current, mode)
	if err := c.CreateMarker(mode.Marker()); err != nil {
		return err
	}
	if err := c.WaitForRemount(ctx, t); err != nil {
		return err
	}

	if got := c.Mode(); got != mode {
		t.Failure("Board in wrong mode: %s", got)
		return &ModeError{Want: mode, Got: got}
	}
	return nil
}

// TriggerAssert makes the interface firmware raise a test assertion, which
// it records in ASSERT.TXT.
func (c *Channel) TriggerAssert(ctx context.Context, parent *report.Test) error {
	if err := c.CreateMarker(protocol.MarkerAssert); err != nil {
		return err
	}
	return c.WaitForRemount(ctx, parent)
}

// ClearAssert removes ASSERT.TXT, if present, and waits for the remount
// that follows.
func (c *Channel) ClearAssert(ctx context.Context) error {
	path, ok := findFile(c.fs, c.mountPoint, protocol.FileAssert)
	if !ok {
		return nil
	}
	if err := c.fs.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", protocol.FileAssert, err)
	}
	return c.WaitForRemount(ctx, nil)
}

// CheckFSOnRemount reports whether WaitForRemount runs CheckFilesystem.
func (c *Channel) CheckFSOnRemount() bool { return c.config.CheckFSOnRemount }

// SetCheckFSOnRemount enables or disables filesystem checks and assertion
// management after every remount. Any pending assertion is cleared first.
func (c *Channel) SetCheckFSOnRemount(ctx context.Context, enabled bool) error {
	c.config.CheckFSOnRemount = enabled
	return c.SetAssertAutoManage(ctx, enabled)
}

// SetAssertAutoManage enables or disables assertion management. Any pending
// assertion is cleared first.
func (c *Channel) SetAssertAutoManage(ctx context.Context, enabled bool) error {
	if err := c.ClearAssert(ctx); err != nil {
		return err
	}
	c.config.AssertAutoManage = enabled
	return nil
}

// findFile looks name up in dir, falling back to a case-insensitive match.
func findFile(fs afero.Fs, dir, name string) (string, bool) {
	if dir == "" {
		return "", false
	}
	path := filepath.Join(dir, name)
	if ok, _ := afero.Exists(fs, path); ok {
		return path, true
	}
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", false
	}
	for _, fi := range infos {
		if !fi.IsDir() && strings.EqualFold(fi.Name(), name) {
			return filepath.Join(dir, fi.Name()), true
		}
	}
	return "", false
}

// subtest returns a child of parent, or a detached silent test when parent
// is nil.
func subtest(parent *report.Test, name string) *report.Test {
	if parent == nil {
		return report.New(name, nil)
	}
	return parent.Subtest(name)
}

func (c *Channel) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (c *Channel) logInfo(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}
