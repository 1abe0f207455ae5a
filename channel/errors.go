package channel

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-daplink/protocol"
)

var (
	// ErrDismountTimeout is returned when the drive did not go away in time.
	ErrDismountTimeout = errors.New("dismount timed out")

	// ErrMountTimeout is returned when the drive did not come back in time.
	ErrMountTimeout = errors.New("mount timed out")

	// ErrNotConnected is returned when the drive is not mounted.
	ErrNotConnected = errors.New("board not connected")

	// ErrDeviceNotFound is returned when discovery does not list the device.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrNoMountPoint is returned when the device is listed without a drive.
	ErrNoMountPoint = errors.New("mount point is null")
)

// ModeError indicates that a mode change was requested but the device came
// back in a different mode.
type ModeError struct {
	Want protocol.Mode
	Got  protocol.Mode
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("could not change board mode: want %s, board in %s", e.Want, e.Got)
}
