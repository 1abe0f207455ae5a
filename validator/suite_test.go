package validator_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-daplink/image"
	"github.com/moffa90/go-daplink/internal/simdevice"
	"github.com/moffa90/go-daplink/protocol"
	"github.com/moffa90/go-daplink/report"
	"github.com/moffa90/go-daplink/validator"
)

func TestFileTypeSuite(t *testing.T) {
	tests := []struct {
		format image.Format
		mode   protocol.Mode
	}{
		{image.FormatBinary, protocol.ModeBootloader},
		{image.FormatHex, protocol.ModeBootloader},
		{image.FormatBinary, protocol.ModeInterface},
		{image.FormatHex, protocol.ModeInterface},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s in %s mode", tt.format, tt.mode), func(t *testing.T) {
			f := newFixture(t, nil)
			start, raw := uint32(ifStart), simdevice.Firmware(ifStart, ifSize)
			installed := f.dev.Interface
			if tt.mode == protocol.ModeInterface {
				start, raw = blStart, simdevice.Firmware(blStart, blSize)
				installed = f.dev.Bootloader
			}

			parent := report.New("suite", nil)
			err := f.v.FileTypeSuite(context.Background(), parent, tt.format, tt.mode, start, raw)
			require.NoError(t, err)
			require.NoError(t, parent.Err())
			require.Equal(t, raw, installed())
			// the CRC check of the last load switches back to the board mode
			require.Equal(t, tt.mode, f.dev.Mode())
		})
	}
}

func TestFileTypeSuiteShortImage(t *testing.T) {
	tests := []struct {
		mode protocol.Mode
		size int
	}{
		{protocol.ModeBootloader, 0x20},
		{protocol.ModeInterface, 0x20},
		{protocol.ModeInterface, 0x100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("0x%x bytes in %s mode", tt.size, tt.mode), func(t *testing.T) {
			f := newFixture(t, nil)
			parent := report.New("suite", nil)
			err := f.v.FileTypeSuite(context.Background(), parent, image.FormatBinary, tt.mode, ifStart, make([]byte, tt.size))
			require.ErrorIs(t, err, validator.ErrImageTooSmall)
			require.Empty(t, f.fs.written())
		})
	}
}

func TestMassStorageSuite(t *testing.T) {
	tests := []struct {
		name     string
		target   validator.TargetImage
		failures []string
	}{
		{
			name: "good target",
		},
		{
			name:   "bad vector table",
			target: validator.TargetImage{BadVectorTable: true},
		},
		{
			// the simulated target never locks
			name:     "locked when erased",
			target:   validator.TargetImage{LockedWhenErased: true},
			failures: []string{"Failure expected but did not occur"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			app := simdevice.Firmware(0, 0x3000)
			f.writeHost(t, "/host/app.bin", "/host/app.hex", 0, app)

			target := tt.target
			target.BinPath, target.HexPath = "/host/app.bin", "/host/app.hex"

			parent := report.New("suite", nil)
			require.NoError(t, f.v.MassStorageSuite(context.Background(), parent, target))

			err := parent.Err()
			if len(tt.failures) == 0 {
				require.NoError(t, err)
			} else {
				for _, msg := range tt.failures {
					require.ErrorContains(t, err, msg)
				}
				require.Equal(t, len(tt.failures), parent.Counts().Failures)
			}

			got, err := f.dev.ReadTargetMemory(context.Background(), 0, len(app))
			require.NoError(t, err)
			require.Equal(t, app, got)
		})
	}
}

func TestAssertTest(t *testing.T) {
	f := newFixture(t, nil)

	parent := report.New("suite", nil)
	require.NoError(t, f.v.AssertTest(context.Background(), parent))
	require.NoError(t, parent.Err())
	require.False(t, f.ch.FileExists(protocol.FileAssert))
	require.Equal(t, protocol.ModeInterface, f.dev.Mode())
}

func TestLoadFirmware(t *testing.T) {
	resealed := func(start uint32, size int) []byte {
		img := image.New(start, simdevice.Firmware(start, size))
		img.Data[0x200] ^= 0xFF
		_, err := img.SealCRC()
		require.NoError(t, err)
		return img.Data
	}

	t.Run("interface", func(t *testing.T) {
		f := newFixture(t, nil)
		data := resealed(ifStart, ifSize)
		f.writeHost(t, "", "/host/interface.hex", ifStart, data)

		parent := report.New("load", nil)
		require.NoError(t, f.v.LoadFirmware(context.Background(), parent, "/host/interface.hex", protocol.ModeInterface))
		require.NoError(t, parent.Err())
		require.Equal(t, data, f.dev.Interface())
		require.Equal(t, protocol.ModeInterface, f.ch.Mode())
	})

	t.Run("bootloader", func(t *testing.T) {
		f := newFixture(t, nil)
		data := resealed(blStart, blSize)
		f.writeHost(t, "/host/bootloader.bin", "", blStart, data)

		parent := report.New("load", nil)
		require.NoError(t, f.v.LoadFirmware(context.Background(), parent, "/host/bootloader.bin", protocol.ModeBootloader))
		require.NoError(t, parent.Err())
		require.Equal(t, data, f.dev.Bootloader())
	})

	t.Run("bad CRC", func(t *testing.T) {
		f := newFixture(t, nil)
		data := simdevice.Firmware(ifStart, ifSize)
		data[0x10]++
		f.writeHost(t, "", "/host/interface.hex", ifStart, data)

		err := f.v.LoadFirmware(context.Background(), report.New("load", nil), "/host/interface.hex", protocol.ModeInterface)
		var crcErr *validator.CRCError
		require.ErrorAs(t, err, &crcErr)
		require.Equal(t, "/host/interface.hex", crcErr.Path)
	})
}

func TestDAPLinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("long scenario sequence")
	}
	f := newFixture(t, nil)
	iface := simdevice.Firmware(ifStart, ifSize)
	bl := simdevice.Firmware(blStart, blSize)
	f.writeHost(t, "/host/interface.bin", "/host/interface.hex", ifStart, iface)
	f.writeHost(t, "/host/bootloader.bin", "/host/bootloader.hex", blStart, bl)

	parent := report.New("daplink", nil)
	err := f.v.DAPLinkSuite(context.Background(), parent,
		validator.Firmware{HexPath: "/host/interface.hex", BinPath: "/host/interface.bin"},
		validator.Firmware{HexPath: "/host/bootloader.hex", BinPath: "/host/bootloader.bin"},
	)
	require.NoError(t, err)
	require.NoError(t, parent.Err())
	require.Equal(t, iface, f.dev.Interface())
	require.Equal(t, bl, f.dev.Bootloader())
}
