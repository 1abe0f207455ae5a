package image

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMultipleRegions is matched by a RegionError.
	ErrMultipleRegions = errors.New("only one region allowed in image")

	// ErrEmpty is returned when an image file contains no data.
	ErrEmpty = errors.New("image contains no data")
)

// Region is a contiguous range found in an image file.
type Region struct {
	Start uint32
	Size  int
}

// RegionError indicates that an image file does not occupy exactly one
// contiguous address range.
type RegionError struct {
	Regions []Region
}

func (e *RegionError) Error() string {
	parts := make([]string, 0, len(e.Regions))
	for _, r := range e.Regions {
		parts = append(parts, fmt.Sprintf("0x%08X+0x%X", r.Start, r.Size))
	}
	return fmt.Sprintf("only 1 region allowed in image, %d found: %s",
		len(e.Regions), strings.Join(parts, ", "))
}

// Is makes errors.Is(err, ErrMultipleRegions) succeed for a RegionError.
func (e *RegionError) Is(target error) bool {
	return target == ErrMultipleRegions
}

// RangeError indicates an access outside the image address range.
type RangeError struct {
	Addr  uint32
	Len   int
	Start uint32
	Size  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("access 0x%08X+0x%X outside image 0x%08X+0x%X",
		e.Addr, e.Len, e.Start, e.Size)
}

// CRCMismatchError indicates that the CRC embedded in the last four bytes
// of an image does not match the CRC of the rest of the image.
type CRCMismatchError struct {
	Computed uint32
	Embedded uint32
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("image CRC mismatch: computed 0x%08x, embedded 0x%08x",
		e.Computed, e.Embedded)
}
