package flashalgo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// FlashDevice record layout.
const (
	// DeviceRecordSize is the size of the FlashDevice record
	DeviceRecordSize = 160

	// SectorEntrySize is the size of one (size, start) sector entry
	SectorEntrySize = 8

	// SectorEnd terminates the sector list when used for both fields
	SectorEnd = 0xFFFFFFFF

	deviceNameSize = 128
)

// Sector is one entry of the sector list: sectors of Size bytes start at
// offset Start from the flash start, up to the next entry.
type Sector struct {
	Start uint32
	Size  uint32
}

// FlashInfo is the flash geometry described by the FlashDevice record.
type FlashInfo struct {
	Version        uint16
	Name           string
	Type           uint16
	Start          uint32
	Size           uint32
	PageSize       uint32
	EmptyValue     uint8
	ProgTimeoutMs  uint32
	EraseTimeoutMs uint32
	Sectors        []Sector
}

// String renders the record in a human readable form.
func (fi FlashInfo) String() string {
	var b strings.Builder
	b.WriteString("Flash Device:\n")
	fmt.Fprintf(&b, "  name=%s\n", fi.Name)
	fmt.Fprintf(&b, "  version=0x%x\n", fi.Version)
	fmt.Fprintf(&b, "  type=%d\n", fi.Type)
	fmt.Fprintf(&b, "  start=0x%x\n", fi.Start)
	fmt.Fprintf(&b, "  size=0x%x\n", fi.Size)
	fmt.Fprintf(&b, "  page_size=0x%x\n", fi.PageSize)
	fmt.Fprintf(&b, "  value_empty=0x%x\n", fi.EmptyValue)
	fmt.Fprintf(&b, "  prog_timeout_ms=%d\n", fi.ProgTimeoutMs)
	fmt.Fprintf(&b, "  erase_timeout_ms=%d\n", fi.EraseTimeoutMs)
	b.WriteString("  sectors:\n")
	for _, s := range fi.Sectors {
		fmt.Fprintf(&b, "    start=0x%x, size=0x%x\n", s.Start, s.Size)
	}
	return b.String()
}

// memoryReader reads the load image of an object by physical address.
type memoryReader interface {
	read(addr uint32, size int) ([]byte, error)
}

// decodeFlashInfo decodes the FlashDevice record at addr and the sector
// list that follows it.
//
// Record layout (little-endian):
//
//	0x00 version u16
//	0x02 name    [128]byte
//	0x82 type    u16
//	0x84 start   u32
//	0x88 size    u32
//	0x8C page    u32
//	0x90 reserved u32
//	0x94 empty   u8 + 3 pad
//	0x98 prog timeout  u32
//	0x9C erase timeout u32
func decodeFlashInfo(mem memoryReader, addr uint32) (FlashInfo, error) {
	rec, err := mem.read(addr, DeviceRecordSize)
	if err != nil {
		return FlashInfo{}, fmt.Errorf("failed to read FlashDevice: %w", err)
	}

	le := binary.LittleEndian
	name := rec[2 : 2+deviceNameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	fi := FlashInfo{
		Version:        le.Uint16(rec[0x00:]),
		Name:           string(name),
		Type:           le.Uint16(rec[0x82:]),
		Start:          le.Uint32(rec[0x84:]),
		Size:           le.Uint32(rec[0x88:]),
		PageSize:       le.Uint32(rec[0x8C:]),
		EmptyValue:     rec[0x94],
		ProgTimeoutMs:  le.Uint32(rec[0x98:]),
		EraseTimeoutMs: le.Uint32(rec[0x9C:]),
	}

	for entry := addr + DeviceRecordSize; ; entry += SectorEntrySize {
		b, err := mem.read(entry, SectorEntrySize)
		if err != nil {
			return FlashInfo{}, fmt.Errorf("failed to read sector list: %w", err)
		}
		size, start := le.Uint32(b[0:]), le.Uint32(b[4:])
		if size == SectorEnd && start == SectorEnd {
			break
		}
		fi.Sectors = append(fi.Sectors, Sector{Start: start, Size: size})
	}

	return fi, nil
}
