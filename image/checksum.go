package image

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Checksum layout constants.
const (
	// CRCSize is the size of the trailing image CRC field
	CRCSize = 4

	// VectorCount is the number of vector table words covered by the
	// vector checksum
	VectorCount = 7

	// VectorChecksumOffset is the offset of the vector checksum word from
	// the image start
	VectorChecksumOffset = 0x1C
)

// CRC32 returns the IEEE CRC-32 of data.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// VectorChecksum returns the two's complement of the sum of the first
// VectorCount little-endian words of data, so that the words plus the
// checksum sum to zero modulo 2^32.
func VectorChecksum(data []byte) (uint32, error) {
	if len(data) < VectorCount*4 {
		return 0, fmt.Errorf("vector table too short: got %d bytes, need %d", len(data), VectorCount*4)
	}
	var sum uint32
	for i := 0; i < VectorCount; i++ {
		sum += binary.LittleEndian.Uint32(data[i*4:])
	}
	return ^sum + 1, nil
}

// ComputedCRC returns the CRC-32 of the image excluding the trailing CRC
// field.
func (img *Image) ComputedCRC() (uint32, error) {
	if len(img.Data) < CRCSize {
		return 0, fmt.Errorf("image too short for CRC: %d bytes", len(img.Data))
	}
	return CRC32(img.Data[:len(img.Data)-CRCSize]), nil
}

// EmbeddedCRC returns the CRC stored in the last four bytes of the image.
func (img *Image) EmbeddedCRC() (uint32, error) {
	if len(img.Data) < CRCSize {
		return 0, fmt.Errorf("image too short for CRC: %d bytes", len(img.Data))
	}
	return binary.LittleEndian.Uint32(img.Data[len(img.Data)-CRCSize:]), nil
}

// SealCRC computes the image CRC and stores it in the last four bytes.
// It returns the stored value.
func (img *Image) SealCRC() (uint32, error) {
	crc, err := img.ComputedCRC()
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(img.Data[len(img.Data)-CRCSize:], crc)
	return crc, nil
}

// VerifyCRC checks the embedded CRC against the computed one.
func VerifyCRC(img *Image) error {
	computed, err := img.ComputedCRC()
	if err != nil {
		return err
	}
	embedded, _ := img.EmbeddedCRC()
	if computed != embedded {
		return &CRCMismatchError{Computed: computed, Embedded: embedded}
	}
	return nil
}
