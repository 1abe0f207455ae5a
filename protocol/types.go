package protocol

import (
	"fmt"
	"strconv"
)

// Mode is the firmware currently running on the device.
type Mode string

const (
	// ModeInterface is the debug interface firmware
	ModeInterface Mode = "interface"

	// ModeBootloader is the bootloader, which updates the interface
	ModeBootloader Mode = "bootloader"
)

// ParseMode parses the daplink_mode value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeInterface, ModeBootloader:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Marker returns the control marker that switches the device to m.
func (m Mode) Marker() string {
	if m == ModeBootloader {
		return MarkerStartBL
	}
	return MarkerStartIF
}

// Other returns the opposite mode.
func (m Mode) Other() Mode {
	if m == ModeBootloader {
		return ModeInterface
	}
	return ModeBootloader
}

// CRCKey returns the details key holding the CRC of the firmware that
// mode m updates: the bootloader CRC in interface mode and vice versa.
func (m Mode) CRCKey() string {
	if m == ModeInterface {
		return KeyBootloaderCRC
	}
	return KeyInterfaceCRC
}

// Details is a parsed DETAILS.TXT snapshot.
type Details struct {
	UniqueID          string
	HICID             string
	Mode              Mode
	BootloaderVersion string
	InterfaceVersion  string
	GitSHA            string
	LocalMods         string
	USBInterfaces     string
	BootloaderCRC     string
	InterfaceCRC      string

	// RemountCount is nil when the firmware does not report it
	RemountCount *uint32

	// Raw holds every parsed key
	Raw map[string]string
}

// CRC returns the CRC stored under key, and whether it is present.
func (d *Details) CRC(key string) (uint32, bool, error) {
	v, ok := d.Raw[key]
	if !ok {
		return 0, false, nil
	}
	crc, err := ParseCRC(v)
	return crc, true, err
}

// ParseCRC parses a "0x%08x" CRC value.
func ParseCRC(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid CRC %q: %w", s, err)
	}
	return uint32(v), nil
}

// FormatCRC formats a CRC as published in DETAILS.TXT.
func FormatCRC(crc uint32) string {
	return fmt.Sprintf("0x%08x", crc)
}

// Failure is the content of FAIL.TXT.
type Failure struct {
	Message  string
	Category string
}

func (f *Failure) String() string {
	return fmt.Sprintf("%s, %s", f.Message, f.Category)
}

// Assert is the content of ASSERT.TXT.
type Assert struct {
	File string
	Line string
}

// BoardID returns the board id encoded in the first four digits of a
// unique id.
func BoardID(uniqueID string) (uint16, error) {
	if len(uniqueID) < 4 {
		return 0, fmt.Errorf("unique id %q too short", uniqueID)
	}
	v, err := strconv.ParseUint(uniqueID[:4], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid board id in unique id %q: %w", uniqueID, err)
	}
	return uint16(v), nil
}

// HostID returns the part of a unique id identifying the interface chip.
// Two unique ids with the same host id belong to the same physical device
// in either mode.
func HostID(uniqueID string) string {
	if len(uniqueID) <= hostIDStart {
		return ""
	}
	end := hostIDStart + hostIDLength
	if end > len(uniqueID) {
		end = len(uniqueID)
	}
	return uniqueID[hostIDStart:end]
}

// HICID returns the last eight digits of a unique id.
func HICID(uniqueID string) string {
	if len(uniqueID) < hicIDLength {
		return uniqueID
	}
	return uniqueID[len(uniqueID)-hicIDLength:]
}
