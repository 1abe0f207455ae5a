package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/moffa90/go-daplink/channel"
	"github.com/moffa90/go-daplink/image"
	"github.com/moffa90/go-daplink/protocol"
	"github.com/moffa90/go-daplink/report"
	"github.com/spf13/afero"
)

const (
	// Offset of the HIC id in an interface image.
	hicIDOffset = 0x24

	// Offset of the data byte corrupted to make a bootloader image fail its
	// CRC.
	dataCRCOffset = 0x100
)

// Firmware is a DAPLink update published as a hex and a bin file.
type Firmware struct {
	HexPath string
	BinPath string
}

// TargetImage is a user application used to exercise target programming.
type TargetImage struct {
	HexPath string
	BinPath string

	// BadVectorTable skips the bin scenarios, which need a valid vector
	// table to be recognized
	BadVectorTable bool

	// LockedWhenErased is set for targets that refuse a blank image
	// because it would set their security bits
	LockedWhenErased bool
}

// DAPLinkSuite runs the assert test and every bootloader and interface
// update scenario.
func (v *Validator) DAPLinkSuite(ctx context.Context, parent *report.Test, iface, bootloader Firmware) error {
	t := parent.Subtest("daplink_test")

	img, err := v.readHex(iface.HexPath)
	if err != nil {
		return err
	}

	if err := v.AssertTest(ctx, t); err != nil {
		return err
	}

	updates := []struct {
		kind string
		fw   Firmware
		mode protocol.Mode
	}{
		{"interface", iface, protocol.ModeBootloader},
		{"bootloader", bootloader, protocol.ModeInterface},
	}
	for i, u := range updates {
		if i > 0 {
			if img, err = v.readHex(u.fw.HexPath); err != nil {
				return err
			}
		}
		for _, src := range []struct{ name, path string }{
			{"binary", u.fw.BinPath},
			{"hex", u.fw.HexPath},
		} {
			sc := Scenario{
				Name:         fmt.Sprintf("Shutil %s file load %s", src.name, u.kind),
				Strategy:     Copy{Path: src.path},
				Mode:         u.mode,
				ExpectedMode: protocol.ModeInterface,
				Expect:       Success{Data: img.Data, Start: img.Start, Check: CheckCRC{}},
			}
			if _, err := v.Run(ctx, sc, t); err != nil {
				return err
			}
		}
		for _, format := range []image.Format{image.FormatBinary, image.FormatHex} {
			if err := v.FileTypeSuite(ctx, t, format, u.mode, img.Start, img.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

// FileTypeSuite checks how the device handles good and corrupted updates
// of the firmware it updates in boardMode, sent as format.
func (v *Validator) FileTypeSuite(ctx context.Context, parent *report.Test, format image.Format, boardMode protocol.Mode, start uint32, raw []byte) error {
	dataType := boardMode.Other()
	need := hicIDOffset + 1
	if boardMode == protocol.ModeInterface {
		need = dataCRCOffset + 1
	}
	if len(raw) < need {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrImageTooSmall, len(raw), need)
	}
	t := parent.Subtest(fmt.Sprintf("%s %s filetype test", format, dataType))
	fileName := "image." + format.String()

	content := func(addr uint32, data []byte) ([]byte, error) {
		if format == image.FormatBinary {
			return append([]byte(nil), data...), nil
		}
		return image.EncodeBytes(image.New(addr, data), format)
	}
	corrupt := func(off int) []byte {
		d := append([]byte(nil), raw...)
		d[off]++
		return d
	}
	run := func(name string, addr uint32, data []byte, expect Expect, expectedMode protocol.Mode, strategy Strategy) error {
		src, err := content(addr, data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return v.runSuiteScenario(ctx, t, Scenario{
			Name:         name,
			Source:       src,
			FileName:     fileName,
			Strategy:     strategy,
			Mode:         boardMode,
			ExpectedMode: expectedMode,
			Expect:       expect,
		})
	}
	good := Success{Data: raw, Start: start, Check: CheckCRC{}}
	needBL := func() {
		if boardMode == protocol.ModeInterface && !v.ch.FileExists(protocol.FileNeedBL) {
			t.Failure("Bootloader missing but file %s not present", protocol.FileNeedBL)
		}
	}

	err := run("Load partial", start, raw[:len(raw)/2],
		Failure{Message: protocol.MsgIncomplete, Category: protocol.CategoryInterface}, boardMode, nil)
	if err != nil {
		return err
	}
	if boardMode == protocol.ModeInterface {
		needBL()
		if err := v.checkBootloaderRefused(ctx, t); err != nil {
			return err
		}
	}

	if err := run("Normal Load", start, raw, good, protocol.ModeInterface, nil); err != nil {
		return err
	}

	if format != image.FormatBinary {
		msg := protocol.MsgInterfaceAddress
		if boardMode == protocol.ModeInterface {
			msg = protocol.MsgBootloaderAddress
		}
		err := run("Wrong Address", start+0x400, raw,
			Failure{Message: msg, Category: protocol.CategoryUser}, boardMode, nil)
		if err != nil {
			return err
		}
	}

	if err := run("Load with flushes", start, raw, good, protocol.ModeInterface, Chunked{FlushSize: 0x1000}); err != nil {
		return err
	}

	// Interface images from other vendors may lack the CRC, so only the
	// bootloader rejects a wrong one.
	badCRC := corrupt(len(raw) - 1)
	var expect Expect = Success{Data: badCRC, Start: start, Check: CheckCRC{}}
	if boardMode == protocol.ModeInterface {
		expect = Failure{Message: protocol.MsgBootloaderCRC, Category: protocol.CategoryInterface}
	}
	if err := run("Wrong CRC", start, badCRC, expect, protocol.ModeInterface, nil); err != nil {
		return err
	}
	needBL()

	padded, err := content(start, raw)
	if err != nil {
		return err
	}
	padded = append(padded, bytes.Repeat([]byte{0xFF}, 0x1000)...)
	err = v.runSuiteScenario(ctx, t, Scenario{
		Name:         "Padded load",
		Source:       padded,
		FileName:     fileName,
		Mode:         boardMode,
		ExpectedMode: protocol.ModeInterface,
		Expect:       good,
	})
	if err != nil {
		return err
	}

	if boardMode == protocol.ModeInterface {
		err := run("Wrong data CRC", start, corrupt(dataCRCOffset),
			Failure{Message: protocol.MsgBootloaderCRC, Category: protocol.CategoryInterface}, protocol.ModeInterface, nil)
		if err != nil {
			return err
		}
		needBL()
		if err := run("Normal Load", start, raw, good, protocol.ModeInterface, nil); err != nil {
			return err
		}
	}

	// The bootloader accepts an interface regardless of its HIC id.
	if dataType == protocol.ModeInterface {
		wrongHIC := corrupt(hicIDOffset)
		err := run("Wrong HIC ID", start, wrongHIC,
			Success{Data: wrongHIC, Start: start, Check: CheckCRC{}}, protocol.ModeInterface, nil)
		if err != nil {
			return err
		}
	}

	src, err := content(start, raw)
	if err != nil {
		return err
	}
	err = v.runSuiteScenario(ctx, t, Scenario{
		Name:           "Extra Files",
		Source:         src,
		FileName:       fileName,
		MockDirs:       MockDirs,
		MockFiles:      MockFiles,
		MockDirsAfter:  MockDirsAfter,
		MockFilesAfter: MockFilesAfter,
		Mode:           boardMode,
		ExpectedMode:   protocol.ModeInterface,
		Expect:         good,
	})
	if err != nil {
		return err
	}

	return run("Restore image", start, raw, good, protocol.ModeInterface, nil)
}

// checkBootloaderRefused verifies that a device with an invalid bootloader
// stays in interface mode when asked to switch.
func (v *Validator) checkBootloaderRefused(ctx context.Context, t *report.Test) error {
	t.Info("Testing switch to bootloader")
	err := v.ch.SetMode(ctx, protocol.ModeBootloader, nil)
	var me *channel.ModeError
	switch {
	case err == nil:
		t.Failure("Board switched to bootloader mode")
	case errors.As(err, &me):
	default:
		t.Info("Switch to bootloader failed: %s", err)
	}
	if v.ch.Mode() == protocol.ModeInterface {
		t.Info("Device able to recover from bad BL")
	} else {
		t.Failure("Device in wrong mode")
	}
	return nil
}

// MassStorageSuite programs the target through the drive and reads the
// result back with the MemoryReader.
func (v *Validator) MassStorageSuite(ctx context.Context, parent *report.Test, target TargetImage) error {
	t := parent.Subtest("test_mass_storage")

	binData, err := afero.ReadFile(v.config.HostFs, target.BinPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", target.BinPath, err)
	}
	hexData, err := afero.ReadFile(v.config.HostFs, target.HexPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", target.HexPath, err)
	}
	img, err := image.ParseReader(bytes.NewReader(hexData), image.FormatHex, 0)
	if err != nil {
		return fmt.Errorf("parse %s: %w", target.HexPath, err)
	}
	start := img.Start
	blank := bytes.Repeat([]byte{0xFF}, 0x2000)
	vectorsAndPad := append(append([]byte(nil), binData[:min(32, len(binData))]...), blank...)
	flushes := Chunked{FlushSize: 0x1000}

	var scenarios []Scenario
	if !target.BadVectorTable {
		scenarios = append(scenarios,
			Scenario{Name: "Shutil binary file load", Strategy: Copy{Path: target.BinPath}},
			Scenario{Name: "Load binary with flushes", Source: binData, FileName: "image.bin", Strategy: flushes},
		)
	}
	scenarios = append(scenarios,
		Scenario{Name: "Shutil hex file load", Strategy: Copy{Path: target.HexPath}},
		Scenario{Name: "Load hex with flushes", Source: hexData, FileName: "image.hex", Strategy: flushes},
	)
	for i := range scenarios {
		scenarios[i].Expect = Success{Data: binData, Start: start}
	}

	if !target.BadVectorTable {
		small := binData[:min(0x789, len(binData))]
		scenarios = append(scenarios, Scenario{
			Name:     "Load .bin smaller than sector",
			Source:   small,
			FileName: "image.bin",
			Expect:   Success{Data: small, Start: start},
		})
	}

	// Without a valid vector table the interface waits for more data.
	scenarios = append(scenarios, Scenario{
		Name:     "Load blank binary",
		Source:   blank,
		FileName: "image.bin",
		Expect:   Failure{Message: protocol.MsgTransferTimeout, Category: protocol.CategoryTransientUser},
	})

	if !target.BadVectorTable {
		sc := Scenario{
			Name:     "Load blank binary + vector table",
			Source:   vectorsAndPad,
			FileName: "image.bin",
			Expect:   Success{Data: vectorsAndPad, Start: start},
		}
		if target.LockedWhenErased {
			sc.Expect = Failure{Message: protocol.MsgSecurityBits, Category: protocol.CategoryUser}
		}
		scenarios = append(scenarios, sc)
	}

	scenarios = append(scenarios,
		Scenario{
			Name:           "Extra Files",
			Source:         hexData,
			FileName:       "image.hex",
			MockDirs:       MockDirs,
			MockFiles:      MockFiles,
			MockDirsAfter:  MockDirsAfter,
			MockFilesAfter: MockFilesAfter,
			Expect:         Success{Data: binData, Start: start},
		},
		Scenario{
			Name:     "Load good file to restore state",
			Source:   hexData,
			FileName: "image.hex",
			Expect:   Success{Data: binData, Start: start},
		},
	)

	for _, sc := range scenarios {
		if _, err := v.Run(ctx, sc, t); err != nil {
			return err
		}
	}
	return nil
}

// AssertTest checks that an assertion is reported in ASSERT.TXT, persists
// across mode changes and can be cleared.
func (v *Validator) AssertTest(ctx context.Context, parent *report.Test) error {
	t := parent.Subtest("Assert Test")

	if err := v.ch.SetAssertAutoManage(ctx, false); err != nil {
		return err
	}
	if err := v.ch.SetMode(ctx, protocol.ModeInterface, t); err != nil {
		return err
	}

	t.Info("Triggering assert by creating %s", protocol.MarkerAssert)
	if err := v.ch.TriggerAssert(ctx, t); err != nil {
		return err
	}

	steps := []struct {
		info string
		mode protocol.Mode
	}{
		{"Checking that assert file was created", protocol.ModeInterface},
		{"Checking that assert file persists if->bl", protocol.ModeBootloader},
		{"Checking that assert file persists bl->if", protocol.ModeInterface},
	}
	for _, s := range steps {
		t.Info(s.info)
		if err := v.ch.SetMode(ctx, s.mode, t); err != nil {
			return err
		}
		if !v.ch.FileExists(protocol.FileAssert) {
			t.Failure("Assert file not created")
		}
	}

	if err := v.ch.ClearAssert(ctx); err != nil {
		return err
	}

	for _, mode := range []protocol.Mode{protocol.ModeInterface, protocol.ModeBootloader, protocol.ModeInterface} {
		if err := v.ch.SetMode(ctx, mode, t); err != nil {
			return err
		}
		if v.ch.FileExists(protocol.FileAssert) {
			t.Failure("Assert file not cleared correctly")
		}
	}

	return v.ch.SetAssertAutoManage(ctx, true)
}

// LoadFirmware installs the interface or bootloader image at path and
// checks the CRC the device reports for it. kind is the mode the image
// runs in: the interface is loaded from bootloader mode and the bootloader
// from interface mode.
func (v *Validator) LoadFirmware(ctx context.Context, parent *report.Test, path string, kind protocol.Mode) error {
	t := parent.Subtest("load_" + string(kind))
	updater := kind.Other()
	if err := v.ch.SetMode(ctx, updater, t); err != nil {
		return err
	}

	data, err := afero.ReadFile(v.config.HostFs, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	img, err := image.ParseReader(bytes.NewReader(data), image.FormatFromPath(path), 0)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	computed, err := img.ComputedCRC()
	if err != nil {
		return err
	}
	embedded, _ := img.EmbeddedCRC()
	if computed != embedded {
		return &CRCError{Path: path, Computed: computed, Embedded: embedded}
	}

	start := time.Now()
	if err := afero.WriteFile(v.ch.Fs(), v.ch.Path(filepath.Base(path)), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	t.Info("programming took %s", time.Since(start))
	v.logInfo("firmware written", "path", path, "kind", kind)
	if err := v.ch.WaitForRemount(ctx, t); err != nil {
		return err
	}

	if err := v.ch.SetMode(ctx, protocol.ModeInterface, t); err != nil {
		return err
	}
	key := updater.CRCKey()
	details := v.ch.Details()
	if details == nil {
		t.Failure("Could not read %s", protocol.FileDetails)
		return nil
	}
	crc, ok, err := details.CRC(key)
	if err != nil || !ok {
		t.Failure("No %s CRC in %s", kind, protocol.FileDetails)
		return nil
	}
	t.Info("%s crc: 0x%x", kind, crc)
	if crc != computed {
		t.Failure("%s CRC is wrong", kind)
	}
	return nil
}

func (v *Validator) runSuiteScenario(ctx context.Context, t *report.Test, sc Scenario) error {
	_, err := v.Run(ctx, sc, t)
	return err
}

func (v *Validator) readHex(path string) (*image.Image, error) {
	f, err := v.config.HostFs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	img, err := image.ParseReader(f, image.FormatHex, 0)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return img, nil
}
