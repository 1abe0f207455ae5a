package protocol

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var requiredFormats = []struct {
	key    string
	format *regexp.Regexp
}{
	{KeyUniqueID, regexp.MustCompile(`^[a-f0-9]{48}$`)},
	{KeyHICID, regexp.MustCompile(`^[a-f0-9]{8}$`)},
	{KeyGitSHA, regexp.MustCompile(`^[a-f0-9]{40}$`)},
	{KeyLocalMods, regexp.MustCompile(`^[01]$`)},
	{KeyUSBInterfaces, regexp.MustCompile(`^.+$`)},
	{KeyMode, regexp.MustCompile(`^(interface|bootloader)$`)},
}

var optionalFormats = []struct {
	key    string
	format *regexp.Regexp
}{
	{KeyBootloaderVersion, regexp.MustCompile(`^[0-9]{4}$`)},
	{KeyInterfaceVersion, regexp.MustCompile(`^[0-9]{4}$`)},
	{KeyBootloaderCRC, regexp.MustCompile(`^0x[a-f0-9]{8}$`)},
	{KeyInterfaceCRC, regexp.MustCompile(`^0x[a-f0-9]{8}$`)},
}

// ParseDetails reads DETAILS.TXT. It fails when the mode is missing or
// unknown or the remount count is not a decimal u32, so a returned
// Details is always complete.
func ParseDetails(r io.Reader) (*Details, error) {
	kvp, _, err := ParseKVP(r, FileDetails)
	if err != nil {
		return nil, err
	}
	return DetailsFromKVP(kvp)
}

// DetailsFromKVP builds a Details from parsed key/value pairs.
func DetailsFromKVP(kvp map[string]string) (*Details, error) {
	modeStr, ok := kvp[KeyMode]
	if !ok {
		return nil, ErrNoMode
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	d := &Details{
		UniqueID:          kvp[KeyUniqueID],
		HICID:             kvp[KeyHICID],
		Mode:              mode,
		BootloaderVersion: kvp[KeyBootloaderVersion],
		InterfaceVersion:  kvp[KeyInterfaceVersion],
		GitSHA:            kvp[KeyGitSHA],
		LocalMods:         kvp[KeyLocalMods],
		USBInterfaces:     kvp[KeyUSBInterfaces],
		BootloaderCRC:     kvp[KeyBootloaderCRC],
		InterfaceCRC:      kvp[KeyInterfaceCRC],
		Raw:               kvp,
	}
	if v, ok := kvp[KeyRemountCount]; ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", KeyRemountCount, v, err)
		}
		count := uint32(n)
		d.RemountCount = &count
	}
	return d, nil
}

// ValidateDetails checks required keys, field formats and the identity of
// the device against uniqueID, the id reported over USB. Every problem is
// returned as a *DetailError.
func ValidateDetails(kvp map[string]string, uniqueID string) []error {
	var errs []error

	for _, f := range requiredFormats {
		v, ok := kvp[f.key]
		if !ok {
			errs = append(errs, &DetailError{Key: f.key, Reason: "missing entry"})
			continue
		}
		if !f.format.MatchString(v) {
			errs = append(errs, &DetailError{Key: f.key, Value: v, Reason: "bad format"})
		}
	}
	for _, f := range optionalFormats {
		if v, ok := kvp[f.key]; ok && !f.format.MatchString(v) {
			errs = append(errs, &DetailError{Key: f.key, Value: v, Reason: "bad format"})
		}
	}
	if v, ok := kvp[KeyRemountCount]; ok {
		if _, err := strconv.ParseUint(v, 10, 32); err != nil {
			errs = append(errs, &DetailError{Key: KeyRemountCount, Value: v, Reason: "bad format"})
		}
	}

	if uid, ok := kvp[KeyUniqueID]; ok {
		if uid != uniqueID {
			errs = append(errs, &DetailError{Key: KeyUniqueID, Value: uid, Reason: fmt.Sprintf("mismatch with usb %s", uniqueID)})
		}
		if hic, ok := kvp[KeyHICID]; ok && hic != HICID(uid) {
			errs = append(errs, &DetailError{Key: KeyHICID, Value: hic, Reason: fmt.Sprintf("not the last 8 digits of unique id %s", uid)})
		}
	}
	return errs
}

// FormatDetails renders d in the layout the firmware publishes. Keys of
// Raw not covered by a field are appended in sorted order.
func FormatDetails(w io.Writer, d *Details) error {
	var pairs [][2]string
	add := func(key, value string) {
		if value != "" {
			pairs = append(pairs, [2]string{key, value})
		}
	}
	add("Unique ID", d.UniqueID)
	add("HIC ID", d.HICID)
	add("Daplink Mode", string(d.Mode))
	add("Bootloader Version", d.BootloaderVersion)
	add("Interface Version", d.InterfaceVersion)
	add("Git SHA", d.GitSHA)
	add("Local Mods", d.LocalMods)
	add("USB Interfaces", d.USBInterfaces)
	add("Bootloader CRC", d.BootloaderCRC)
	add("Interface CRC", d.InterfaceCRC)
	if d.RemountCount != nil {
		add("Remount count", strconv.FormatUint(uint64(*d.RemountCount), 10))
	}

	known := map[string]bool{
		KeyUniqueID: true, KeyHICID: true, KeyMode: true, KeyBootloaderVersion: true,
		KeyInterfaceVersion: true, KeyGitSHA: true, KeyLocalMods: true, KeyUSBInterfaces: true,
		KeyBootloaderCRC: true, KeyInterfaceCRC: true, KeyRemountCount: true,
	}
	extra := make([]string, 0, len(d.Raw))
	for k := range d.Raw {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		add(strings.ReplaceAll(k, "_", " "), d.Raw[k])
	}

	if _, err := io.WriteString(w, "# DAPLink Firmware - see https://mbed.com/daplink\r\n"); err != nil {
		return err
	}
	return FormatKVP(w, pairs)
}
