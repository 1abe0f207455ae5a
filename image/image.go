package image

import (
	"encoding/binary"
	"fmt"
)

// Format is the encoding of an image file.
type Format int

const (
	// FormatHex is Intel HEX.
	FormatHex Format = iota

	// FormatBinary is a raw binary without address information.
	FormatBinary
)

// String returns the file extension used for the format, without the dot.
func (f Format) String() string {
	switch f {
	case FormatHex:
		return "hex"
	case FormatBinary:
		return "bin"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Image is a linked program image occupying one contiguous address range.
type Image struct {
	// Start is the absolute address of Data[0]
	Start uint32

	// Data is the image content
	Data []byte
}

// New returns an image holding a copy of data placed at start.
func New(start uint32, data []byte) *Image {
	d := make([]byte, len(data))
	copy(d, data)
	return &Image{Start: start, Data: d}
}

// Size returns the image size in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// End returns the address of the last byte of the image (inclusive).
func (img *Image) End() uint32 {
	return img.Start + uint32(len(img.Data)) - 1
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	return New(img.Start, img.Data)
}

// Contains reports whether the n bytes at addr lie inside the image.
func (img *Image) Contains(addr uint32, n int) bool {
	if addr < img.Start || n < 0 {
		return false
	}
	off := uint64(addr) - uint64(img.Start)
	return off+uint64(n) <= uint64(len(img.Data))
}

// Bytes returns the n bytes at the absolute address addr.
// The returned slice aliases the image data.
func (img *Image) Bytes(addr uint32, n int) ([]byte, error) {
	if !img.Contains(addr, n) {
		return nil, &RangeError{Addr: addr, Len: n, Start: img.Start, Size: len(img.Data)}
	}
	off := addr - img.Start
	return img.Data[off : off+uint32(n)], nil
}

// Put copies b into the image at the absolute address addr.
func (img *Image) Put(addr uint32, b []byte) error {
	dst, err := img.Bytes(addr, len(b))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// Uint32 reads a little-endian word at the absolute address addr.
func (img *Image) Uint32(addr uint32) (uint32, error) {
	b, err := img.Bytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// PutUint32 writes a little-endian word at the absolute address addr.
func (img *Image) PutUint32(addr uint32, v uint32) error {
	b, err := img.Bytes(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// PutUint16 writes a little-endian half-word at the absolute address addr.
func (img *Image) PutUint16(addr uint32, v uint16) error {
	b, err := img.Bytes(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}
