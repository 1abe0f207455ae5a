// Package simdevice simulates a DAPLink device on an afero filesystem.
//
// The device only acts when it is polled through Endpoints, the way a host
// sees a real device only through discovery: each call is one tick, during
// which pending markers and image files on the drive are processed. Any
// accepted action wipes the drive for a few ticks and then publishes it
// again with fresh DETAILS.TXT, FAIL.TXT, ASSERT.TXT and NEED_BL.TXT.
package simdevice

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/moffa90/go-daplink/channel"
	"github.com/moffa90/go-daplink/protocol"
)

const (
	assertFile = "../../../source/daplink/interface/main.c"
	assertLine = "0"

	msgHexDecode     = "The hex file cannot be decoded. Parser logic failure occurred."
	msgTargetAddress = "The starting address for the target update is wrong."

	mbedHTM = "<!doctype html>\r\n" +
		"<!-- mbed Website and Authentication Shortcut -->\r\n" +
		"<html>\r\n" +
		"<head>\r\n" +
		"<meta http-equiv=\"refresh\" content=\"0; URL=https://mbed.com/daplink\"/>\r\n" +
		"<title>mbed Website Shortcut</title>\r\n" +
		"</head>\r\n" +
		"<body></body>\r\n" +
		"</html>\r\n"
)

// Device is a simulated DAPLink device. It implements channel.Discovery
// and reads target memory for the validator. It is safe for concurrent use.
type Device struct {
	fs         afero.Fs
	mountPoint string
	config     Config

	mu            sync.Mutex
	mode          protocol.Mode
	remountCount  uint32
	dismounted    int
	frozen        bool
	failure       *protocol.Failure
	assert        *protocol.Assert
	bootloaderBad bool
	interfaceBad  bool
	bootloader    []byte
	iface         []byte
	target        []byte
}

// New creates a device and mounts its drive at mountPoint on fs.
func New(fs afero.Fs, mountPoint string, opts ...Option) (*Device, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, err := protocol.ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}

	d := &Device{
		fs:         fs,
		mountPoint: mountPoint,
		config:     cfg,
		mode:       cfg.Mode,
		bootloader: append([]byte(nil), cfg.BootloaderImage...),
		iface:      append([]byte(nil), cfg.InterfaceImage...),
		target:     bytes.Repeat([]byte{0xFF}, cfg.Target.Size),
	}
	if err := d.mount(); err != nil {
		return nil, err
	}
	return d, nil
}

// MountPoint returns the path of the drive.
func (d *Device) MountPoint() string { return d.mountPoint }

// UniqueID returns the unique id the device reports in its current mode.
// The version digits differ between modes; the host id does not.
func (d *Device) UniqueID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uniqueID()
}

func (d *Device) uniqueID() string {
	version := d.config.InterfaceVersion
	if d.mode == protocol.ModeBootloader {
		version = d.config.BootloaderVersion
	}
	return strings.ToLower(fmt.Sprintf("%04x%s%s%s", d.config.BoardID, version, d.config.HostID, d.config.HICID))
}

// Mode returns the current mode.
func (d *Device) Mode() protocol.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// RemountCount returns the number of remounts since the last mode change.
func (d *Device) RemountCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remountCount
}

// Bootloader returns a copy of the installed bootloader.
func (d *Device) Bootloader() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.bootloader...)
}

// Interface returns a copy of the installed interface firmware.
func (d *Device) Interface() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.iface...)
}

// Freeze stops the device from processing anything, so the drive never
// dismounts.
func (d *Device) Freeze(frozen bool) {
	d.mu.Lock()
	d.frozen = frozen
	d.mu.Unlock()
}

// Endpoints implements channel.Discovery. Each call advances the device by
// one tick.
func (d *Device) Endpoints(ctx context.Context) ([]channel.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.tick(); err != nil {
		return nil, err
	}
	ep := channel.Endpoint{UniqueID: d.uniqueID(), SerialPort: d.config.SerialPort}
	if d.dismounted == 0 {
		ep.MountPoint = d.mountPoint
	}
	return []channel.Endpoint{ep}, nil
}

// ReadTargetMemory reads n bytes of target flash at addr. The target is
// only reachable in interface mode.
func (d *Device) ReadTargetMemory(ctx context.Context, addr uint32, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != protocol.ModeInterface {
		return nil, fmt.Errorf("target not reachable in %s mode", d.mode)
	}
	t := d.config.Target
	if !t.contains(addr) || uint64(addr)+uint64(n) > t.End() {
		return nil, fmt.Errorf("read 0x%08X+0x%X outside target flash", addr, n)
	}
	off := addr - t.Start
	return append([]byte(nil), d.target[off:off+uint32(n)]...), nil
}

func (d *Device) tick() error {
	if d.frozen {
		return nil
	}
	if d.dismounted > 0 {
		d.dismounted--
		if d.dismounted == 0 {
			return d.mount()
		}
		return nil
	}

	infos, err := afero.ReadDir(d.fs, d.mountPoint)
	if err != nil {
		return nil
	}
	names := make(map[string]string, len(infos))
	var images []string
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		upper := strings.ToUpper(fi.Name())
		names[upper] = fi.Name()
		if ext := filepath.Ext(upper); ext == ".BIN" || ext == ".HEX" {
			images = append(images, fi.Name())
		}
	}
	sort.Strings(images)

	switch {
	case has(names, protocol.MarkerStartBL):
		d.switchMode(protocol.ModeBootloader)
	case has(names, protocol.MarkerStartIF):
		d.switchMode(protocol.ModeInterface)
	case has(names, protocol.MarkerAssert):
		d.assert = &protocol.Assert{File: assertFile, Line: assertLine}
		d.remount(d.mode)
	case has(names, protocol.MarkerRefresh):
		d.remount(d.mode)
	case d.assert != nil && !has(names, protocol.FileAssert):
		d.assert = nil
		d.remount(d.mode)
	case len(images) > 0:
		data, err := afero.ReadFile(d.fs, filepath.Join(d.mountPoint, images[0]))
		if err != nil {
			return nil
		}
		d.update(images[0], data)
	default:
		return nil
	}
	return d.unmount()
}

func has(names map[string]string, name string) bool {
	_, ok := names[strings.ToUpper(name)]
	return ok
}

func (d *Device) switchMode(mode protocol.Mode) {
	switch {
	case mode == d.mode:
	case mode == protocol.ModeBootloader && d.bootloaderBad:
		log.Debugf("simdevice: bootloader invalid, staying in %s", d.mode)
		mode = d.mode
	case mode == protocol.ModeInterface && d.interfaceBad:
		log.Debugf("simdevice: interface invalid, staying in %s", d.mode)
		mode = d.mode
	default:
		d.failure = nil
	}
	d.remount(mode)
}

// remount schedules a remount that ends in mode.
func (d *Device) remount(mode protocol.Mode) {
	if mode != d.mode {
		d.mode = mode
		d.remountCount = 0
	} else {
		d.remountCount++
	}
	d.dismounted = d.config.DismountTicks
}

func (d *Device) unmount() error {
	log.Debugf("simdevice: dismount %s", d.mountPoint)
	return d.fs.RemoveAll(d.mountPoint)
}

func (d *Device) mount() error {
	log.Debugf("simdevice: mount %s in %s mode, remount count %d", d.mountPoint, d.mode, d.remountCount)
	if err := d.fs.MkdirAll(d.mountPoint, 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := protocol.FormatDetails(&buf, d.details()); err != nil {
		return err
	}
	if err := d.writeFile(protocol.FileDetails, buf.Bytes()); err != nil {
		return err
	}
	if err := d.writeFile("MBED.HTM", []byte(mbedHTM)); err != nil {
		return err
	}
	for name, data := range d.config.Files {
		if err := d.writeFile(name, data); err != nil {
			return err
		}
	}
	if d.failure != nil {
		buf.Reset()
		if err := protocol.FormatFailure(&buf, d.failure); err != nil {
			return err
		}
		if err := d.writeFile(protocol.FileFail, buf.Bytes()); err != nil {
			return err
		}
	}
	if d.assert != nil {
		buf.Reset()
		if err := protocol.FormatAssert(&buf, d.assert); err != nil {
			return err
		}
		if err := d.writeFile(protocol.FileAssert, buf.Bytes()); err != nil {
			return err
		}
	}
	if d.bootloaderBad && d.mode == protocol.ModeInterface {
		if err := d.writeFile(protocol.FileNeedBL, []byte("Bootloader update required\r\n")); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) writeFile(name string, data []byte) error {
	return afero.WriteFile(d.fs, filepath.Join(d.mountPoint, name), data, 0o644)
}

func (d *Device) details() *protocol.Details {
	uid := d.uniqueID()
	count := d.remountCount
	det := &protocol.Details{
		UniqueID:          uid,
		HICID:             protocol.HICID(uid),
		Mode:              d.mode,
		BootloaderVersion: d.config.BootloaderVersion,
		InterfaceVersion:  d.config.InterfaceVersion,
		GitSHA:            d.config.GitSHA,
		LocalMods:         "0",
		USBInterfaces:     "MSD, CDC, HID, WebUSB",
		RemountCount:      &count,
		Raw:               map[string]string{"auto_reset": "1"},
	}
	if len(d.bootloader) >= 4 && !d.bootloaderBad {
		det.BootloaderCRC = protocol.FormatCRC(imageCRC(d.bootloader))
	}
	if len(d.iface) >= 4 && !d.interfaceBad {
		det.InterfaceCRC = protocol.FormatCRC(imageCRC(d.iface))
	}
	return det
}
