package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRAMRange is returned when a flash algorithm is embedded
	// without a valid target RAM range.
	ErrMissingRAMRange = errors.New("target RAM start and end must be defined")

	// ErrImageTooSmall is returned for images that cannot hold a vector
	// table and a CRC.
	ErrImageTooSmall = errors.New("image too small")
)

// LayoutError indicates that a structure does not fit in the image.
type LayoutError struct {
	What   string
	Addr   uint32
	Size   uint32
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("%s at 0x%08X (0x%X bytes): %s", e.What, e.Addr, e.Size, e.Reason)
}
