package simdevice

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/moffa90/go-daplink/image"
	"github.com/moffa90/go-daplink/protocol"
)

var hexEOF = []byte(":00000001FF")

type firmware int

const (
	firmwareTarget firmware = iota
	firmwareBootloader
	firmwareInterface
)

// update processes an image file written to the drive and schedules the
// remount that follows.
func (d *Device) update(name string, data []byte) {
	d.failure = nil
	isHex := strings.EqualFold(filepath.Ext(name), ".hex")

	img, err := decode(data, isHex)
	if err != nil {
		log.Debugf("simdevice: %s: %v", name, err)
		d.fail(protocol.Failure{Message: msgHexDecode, Category: protocol.CategoryUser})
		return
	}

	switch d.classify(img, isHex) {
	case firmwareBootloader:
		d.updateFirmware(img, isHex, d.config.Bootloader, protocol.MsgBootloaderAddress, &d.bootloader, &d.bootloaderBad, true)
	case firmwareInterface:
		d.updateFirmware(img, isHex, d.config.Interface, protocol.MsgInterfaceAddress, &d.iface, &d.interfaceBad, false)
	default:
		d.programTarget(img, isHex)
	}
}

// decode places a drive file at its address. Binary files carry no address
// and are returned at 0. Anything after the end of file record of a hex
// file is ignored.
func decode(data []byte, isHex bool) (*image.Image, error) {
	if !isHex {
		return image.New(0, data), nil
	}
	if i := bytes.Index(data, hexEOF); i >= 0 {
		data = data[:i+len(hexEOF)]
	}
	return image.ParseReader(bytes.NewReader(data), image.FormatHex, 0)
}

// classify decides what an image updates. In bootloader mode everything is
// an interface update. In interface mode an image updates the bootloader
// when it is addressed inside the bootloader region or, for binaries, when
// its reset vector points there; anything else programs the target.
func (d *Device) classify(img *image.Image, isHex bool) firmware {
	if d.mode == protocol.ModeBootloader {
		return firmwareInterface
	}
	bl := d.config.Bootloader
	if isHex {
		if bl.contains(img.Start) {
			return firmwareBootloader
		}
		return firmwareTarget
	}
	if len(img.Data) >= 8 {
		reset := binary.LittleEndian.Uint32(img.Data[4:]) &^ 1
		if bl.contains(reset) {
			return firmwareBootloader
		}
	}
	return firmwareTarget
}

func (d *Device) updateFirmware(img *image.Image, isHex bool, region Region, addrMsg string, dst *[]byte, bad *bool, checkCRC bool) {
	if isHex && img.Start != region.Start {
		d.fail(protocol.Failure{Message: addrMsg, Category: protocol.CategoryUser})
		return
	}
	if len(img.Data) < region.Size {
		*bad = true
		d.fail(protocol.Failure{Message: protocol.MsgIncomplete, Category: protocol.CategoryInterface})
		return
	}
	data := img.Data[:region.Size]
	if checkCRC {
		embedded := binary.LittleEndian.Uint32(data[len(data)-image.CRCSize:])
		if imageCRC(data) != embedded {
			*bad = true
			d.fail(protocol.Failure{Message: protocol.MsgBootloaderCRC, Category: protocol.CategoryInterface})
			return
		}
	}

	*dst = append([]byte(nil), data...)
	*bad = false
	d.remount(protocol.ModeInterface)
}

func (d *Device) programTarget(img *image.Image, isHex bool) {
	t := d.config.Target
	start := img.Start
	if !isHex {
		start = t.Start
	}
	if !t.contains(start) || uint64(start)+uint64(len(img.Data)) > t.End() {
		d.fail(protocol.Failure{Message: msgTargetAddress, Category: protocol.CategoryUser})
		return
	}
	if len(img.Data) < 8 || binary.LittleEndian.Uint32(img.Data) == 0xFFFFFFFF {
		// No vector table: a real interface waits for the rest of the
		// image until the transfer times out.
		d.fail(protocol.Failure{Message: protocol.MsgTransferTimeout, Category: protocol.CategoryTransientUser})
		return
	}
	copy(d.target[start-t.Start:], img.Data)
	d.remount(d.mode)
}

func (d *Device) fail(f protocol.Failure) {
	log.Debugf("simdevice: update failed: %s", f.String())
	d.failure = &f
	d.remount(d.mode)
}

func imageCRC(data []byte) uint32 {
	return image.CRC32(data[:len(data)-image.CRCSize])
}
