package builder

import (
	"bytes"
	"fmt"
)

// Legacy variant layout.
const (
	// LegacyZeroOffset is the offset of the compatibility field zeroed in
	// legacy variants
	LegacyZeroOffset = 7 * 4

	// LegacyZeroSize is the size of the zeroed compatibility field
	LegacyZeroSize = 4 * 4

	// LegacyCopySize is the number of leading bytes copied in front of the
	// padding of a padded legacy binary
	LegacyCopySize = 0x40
)

// LegacyOffset maps an image start address to the flash origin expected
// by older bootloaders.
type LegacyOffset struct {
	Start    uint32 `yaml:"start" mapstructure:"start"`
	PadStart uint32 `yaml:"pad_start" mapstructure:"pad_start"`
}

// DefaultLegacyTable lists the start addresses of the historical
// interface images.
var DefaultLegacyTable = []LegacyOffset{
	{Start: 0x00008000, PadStart: 0x00005000},
	{Start: 0x00010000, PadStart: 0x0000D000},
	{Start: 0x00088000, PadStart: 0x00085000},
	{Start: 0x0800C000, PadStart: 0x08004000},
}

// LegacyArtifact is an artifact for older bootloaders.
type LegacyArtifact struct {
	Artifact

	// PadStart is the start address of Padded
	PadStart uint32

	// Padded is the artifact shifted down to PadStart
	Padded []byte
}

func lookupLegacy(table []LegacyOffset, start uint32) (uint32, bool) {
	for _, e := range table {
		if e.Start == start {
			return e.PadStart, true
		}
	}
	return 0, false
}

// buildLegacy clones a, zeroes the compatibility field, reseals the CRC and
// produces the padded binary.
func buildLegacy(a *Artifact, padStart uint32) (*LegacyArtifact, error) {
	img := a.Image.Clone()
	if err := img.Put(img.Start+LegacyZeroOffset, make([]byte, LegacyZeroSize)); err != nil {
		return nil, fmt.Errorf("failed to zero legacy field: %w", err)
	}
	crc, err := img.SealCRC()
	if err != nil {
		return nil, err
	}

	padded, err := PadImage(img.Data, img.Start, padStart, LegacyCopySize)
	if err != nil {
		return nil, err
	}

	return &LegacyArtifact{
		Artifact: Artifact{Image: img, CRC: crc},
		PadStart: padStart,
		Padded:   padded,
	}, nil
}

// PadImage relocates data from start down to padStart by prefixing the
// first copySize bytes followed by 0xFF filler.
//
// Layout of the result:
//
//	data[:copySize] | 0xFF * (start-padStart-copySize) | data
func PadImage(data []byte, start, padStart uint32, copySize int) ([]byte, error) {
	if padStart >= start {
		return nil, fmt.Errorf("pad start 0x%08X must be below start 0x%08X", padStart, start)
	}
	padSize := int(start - padStart)
	if copySize > padSize || copySize > len(data) {
		return nil, fmt.Errorf("copy size 0x%X exceeds pad size 0x%X or data size 0x%X", copySize, padSize, len(data))
	}

	out := make([]byte, 0, padSize+len(data))
	out = append(out, data[:copySize]...)
	out = append(out, bytes.Repeat([]byte{0xFF}, padSize-copySize)...)
	out = append(out, data...)
	return out, nil
}
