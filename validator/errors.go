package validator

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"
)

var (
	// ErrRetriesExhausted is returned when every attempt of a scenario hit a
	// transient error.
	ErrRetriesExhausted = errors.New("flashing failed after retries")

	// ErrNoMemoryReader is returned by a memory check without a MemoryReader.
	ErrNoMemoryReader = errors.New("no memory reader configured")

	// ErrImageTooSmall is returned by a suite given an image too short for
	// the bytes it corrupts.
	ErrImageTooSmall = errors.New("image too small")
)

// TransientError marks an error as a transient host race worth a retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// CRCError indicates that a firmware file does not carry a valid CRC and
// cannot be loaded.
type CRCError struct {
	Path     string
	Computed uint32
	Embedded uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("CRC in %s is wrong: expected 0x%08x, found 0x%08x",
		e.Path, e.Computed, e.Embedded)
}

// isTransient reports whether err is an I/O error caused by the drive going
// away, which happens when the device remounts during a write.
func isTransient(err error, mountPoint string) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, syscall.EIO) || errors.Is(err, syscall.ENXIO) || errors.Is(err, syscall.ENODEV) {
		return true
	}
	var pe *fs.PathError
	if mountPoint != "" && errors.As(err, &pe) && errors.Is(err, fs.ErrNotExist) {
		rel, rerr := filepath.Rel(mountPoint, pe.Path)
		return rerr == nil && !strings.HasPrefix(rel, "..")
	}
	return false
}
