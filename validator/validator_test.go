package validator_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-daplink/image"
	"github.com/moffa90/go-daplink/internal/simdevice"
	"github.com/moffa90/go-daplink/protocol"
	"github.com/moffa90/go-daplink/report"
	"github.com/moffa90/go-daplink/validator"
)

func TestNewPanicsOnNilChannel(t *testing.T) {
	require.Panics(t, func() { validator.New(nil) })
}

func TestRunSuccess(t *testing.T) {
	app := simdevice.Firmware(0, 0x3000)

	tests := []struct {
		name string
		sc   validator.Scenario
	}{
		{
			name: "write bin",
			sc:   validator.Scenario{Source: app, FileName: "image.bin"},
		},
		{
			name: "write hex",
			sc:   validator.Scenario{FileName: "image.hex"},
		},
		{
			name: "chunked bin",
			sc: validator.Scenario{
				Source:   app,
				FileName: "image.bin",
				Strategy: validator.Chunked{FlushSize: 0x1000, Delay: time.Millisecond},
			},
		},
		{
			name: "copy bin",
			sc:   validator.Scenario{Strategy: validator.Copy{Path: "/host/app.bin"}},
		},
		{
			name: "copy hex",
			sc:   validator.Scenario{Strategy: validator.Copy{Path: "/host/app.hex"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.writeHost(t, "/host/app.bin", "/host/app.hex", 0, app)

			sc := tt.sc
			sc.Name = tt.name
			if sc.FileName == "image.hex" {
				sc.Source = hexOf(t, 0, app)
			}
			sc.ExpectedMode = protocol.ModeInterface
			sc.Expect = validator.Success{Data: app, Start: 0}

			parent := report.New("parent", nil)
			res, err := f.v.Run(context.Background(), sc, parent)
			require.NoError(t, err)
			require.NoError(t, res.Err())
			require.Contains(t, res.Messages(report.LevelInfo), "Data matches")
			require.Equal(t, res.Counts(), parent.Counts())

			got, err := f.dev.ReadTargetMemory(context.Background(), 0, len(app))
			require.NoError(t, err)
			require.Equal(t, app, got)
		})
	}
}

func TestRunFailureMatching(t *testing.T) {
	app := simdevice.Firmware(0, 0x3000)
	blank := make([]byte, 0x2000)
	for i := range blank {
		blank[i] = 0xFF
	}
	timeout := validator.Failure{Message: protocol.MsgTransferTimeout, Category: protocol.CategoryTransientUser}

	tests := []struct {
		name    string
		source  []byte
		expect  validator.Expect
		failure string
		info    string
	}{
		{
			name:   "failure as expected",
			source: blank,
			expect: timeout,
			info:   `Failure as expected: "The transfer timed out., transient, user"`,
		},
		{
			name:    "unexpected failure",
			source:  blank,
			expect:  validator.Success{},
			failure: `Device reported failure: "The transfer timed out."`,
		},
		{
			name:    "unexpected failure without expectation",
			source:  blank,
			failure: `Device reported failure: "The transfer timed out."`,
		},
		{
			name:    "failure did not occur",
			source:  app,
			expect:  timeout,
			failure: "Failure expected but did not occur",
		},
		{
			name:    "wrong string",
			source:  blank,
			expect:  validator.Failure{Message: protocol.MsgIncomplete, Category: protocol.CategoryTransientUser},
			failure: `Failure but wrong string: "The transfer timed out." vs "` + protocol.MsgIncomplete + `"`,
		},
		{
			name:    "wrong type",
			source:  blank,
			expect:  validator.Failure{Message: protocol.MsgTransferTimeout, Category: protocol.CategoryUser},
			failure: `Failure but wrong type: "transient, user" vs "user"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			res, err := f.v.Run(context.Background(), validator.Scenario{
				Name:     tt.name,
				Source:   tt.source,
				FileName: "image.bin",
				Expect:   tt.expect,
			}, nil)
			require.NoError(t, err)

			failures := res.Messages(report.LevelFailure)
			if tt.failure == "" {
				require.Empty(t, failures)
			} else {
				require.Equal(t, []string{tt.failure}, failures)
			}
			if tt.info != "" {
				require.Contains(t, res.Messages(report.LevelInfo), tt.info)
			}
		})
	}
}

func TestRunCheckCRC(t *testing.T) {
	f := newFixture(t, nil)
	img := image.New(ifStart, simdevice.Firmware(ifStart, ifSize))
	img.Data[0x200] ^= 0xFF
	_, err := img.SealCRC()
	require.NoError(t, err)

	res, err := f.v.Run(context.Background(), validator.Scenario{
		Name:         "interface update",
		Source:       hexOf(t, img.Start, img.Data),
		FileName:     "interface.hex",
		Mode:         protocol.ModeBootloader,
		ExpectedMode: protocol.ModeInterface,
		Expect:       validator.Success{Data: img.Data, Start: img.Start, Check: validator.CheckCRC{}},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.Contains(t, res.Messages(report.LevelInfo), "Data matches")
	require.Equal(t, img.Data, f.dev.Interface())

	// the CRC is read in the scenario mode
	require.Equal(t, protocol.ModeBootloader, f.ch.Mode())
}

func TestRunWrongMode(t *testing.T) {
	f := newFixture(t, nil)
	data := simdevice.Firmware(ifStart, ifSize)

	res, err := f.v.Run(context.Background(), validator.Scenario{
		Name:         "interface update",
		Source:       data,
		FileName:     "interface.bin",
		Mode:         protocol.ModeBootloader,
		ExpectedMode: protocol.ModeBootloader,
		Expect:       validator.Success{},
	}, nil)
	require.NoError(t, err)
	require.Equal(t,
		[]string{"Wrong mode after test - Expected bootloader got interface"},
		res.Messages(report.LevelFailure))
}

func TestRunCRCMismatch(t *testing.T) {
	f := newFixture(t, nil)
	data := simdevice.Firmware(ifStart, ifSize)
	other := simdevice.Firmware(ifStart, ifSize)
	other[0x300]++

	res, err := f.v.Run(context.Background(), validator.Scenario{
		Name:     "interface update",
		Source:   data,
		FileName: "interface.bin",
		Mode:     protocol.ModeBootloader,
		Expect:   validator.Success{Data: other, Check: validator.CheckCRC{}},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Data does not match"}, res.Messages(report.LevelFailure))
}

func TestRunRetries(t *testing.T) {
	app := simdevice.Firmware(0, 0x3000)
	sc := validator.Scenario{
		Name:     "retry",
		Source:   app,
		FileName: "image.bin",
		Expect:   validator.Success{Data: app},
	}

	t.Run("transient error is retried", func(t *testing.T) {
		f := newFixture(t, nil)
		f.fs.setFailures(1)

		parent := report.New("parent", nil)
		res, err := f.v.Run(context.Background(), sc, parent)
		require.NoError(t, err)
		require.NoError(t, res.Err())
		require.Contains(t, res.Messages(report.LevelInfo), "Previous attempts 1")
		require.Equal(t, []string{"image.bin", "image.bin"}, f.fs.written())
	})

	t.Run("retries exhausted", func(t *testing.T) {
		f := newFixture(t, nil)
		f.fs.setFailures(-1)

		parent := report.New("parent", nil)
		_, err := f.v.Run(context.Background(), sc, parent)
		require.ErrorIs(t, err, validator.ErrRetriesExhausted)
		require.Len(t, f.fs.written(), 3)
		require.Equal(t, 0, parent.Counts().Infos)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.v.Run(context.Background(), validator.Scenario{
			Name:     "missing source",
			Strategy: validator.Copy{Path: "/host/missing.bin"},
		}, nil)
		require.ErrorIs(t, err, fs.ErrNotExist)
		require.False(t, errors.Is(err, validator.ErrRetriesExhausted))
		require.Empty(t, f.fs.written())
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t, nil, validator.WithRetries(3, time.Hour))
		f.fs.setFailures(-1)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := f.v.Run(ctx, sc, nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Len(t, f.fs.written(), 1)
	})
}

func TestRunNoMemoryReader(t *testing.T) {
	f := newFixture(t, nil, validator.WithMemoryReader(nil))
	app := simdevice.Firmware(0, 0x1000)

	_, err := f.v.Run(context.Background(), validator.Scenario{
		Name:     "no reader",
		Source:   app,
		FileName: "image.bin",
		Expect:   validator.Success{Data: app},
	}, nil)
	require.ErrorIs(t, err, validator.ErrNoMemoryReader)
}

func TestRunMocks(t *testing.T) {
	f := newFixture(t, nil)
	app := simdevice.Firmware(0, 0x1000)

	res, err := f.v.Run(context.Background(), validator.Scenario{
		Name:           "Extra Files",
		Source:         app,
		FileName:       "image.bin",
		MockDirs:       validator.MockDirs,
		MockFiles:      validator.MockFiles,
		MockDirsAfter:  validator.MockDirsAfter,
		MockFilesAfter: validator.MockFilesAfter,
		Expect:         validator.Success{Data: app},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.Equal(t, []string{
		".test", "test/file1", "file.jpg",
		"image.bin",
		".test2", "test2/file12", "file2.jpg",
	}, f.fs.written())
}

func TestRunProgress(t *testing.T) {
	var phases []string
	var last validator.Progress
	f := newFixture(t, nil, validator.WithProgressCallback(func(p validator.Progress) {
		phases = append(phases, p.Phase)
		if p.Phase == validator.PhaseTransfer {
			last = p
		}
	}))
	app := simdevice.Firmware(0, 0x3000)

	_, err := f.v.Run(context.Background(), validator.Scenario{
		Name:     "progress",
		Source:   app,
		FileName: "image.bin",
		Strategy: validator.Chunked{FlushSize: 0x1000},
		Mode:     protocol.ModeInterface,
	}, nil)
	require.NoError(t, err)

	require.Equal(t, []string{
		validator.PhaseMode,
		validator.PhaseTransfer, validator.PhaseTransfer, validator.PhaseTransfer,
		validator.PhaseRemount,
		validator.PhaseVerify,
		validator.PhaseComplete,
	}, phases)
	require.Equal(t, "progress", last.Scenario)
	require.Equal(t, 1, last.Attempt)
	require.Equal(t, len(app), last.BytesWritten)
	require.Equal(t, len(app), last.TotalBytes)
	require.InDelta(t, 100.0, last.Percentage, 0.001)
}

func TestRunCopyFileName(t *testing.T) {
	f := newFixture(t, nil)
	app := simdevice.Firmware(0, 0x1000)
	f.writeHost(t, "/host/app.bin", "", 0, app)

	res, err := f.v.Run(context.Background(), validator.Scenario{
		Name:     "copy renamed",
		FileName: "renamed.bin",
		Strategy: validator.Copy{Path: "/host/app.bin"},
		Expect:   validator.Success{Data: app},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.Equal(t, []string{"renamed.bin"}, f.fs.written())
}

func TestRunChecksFileContents(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		failures int
	}{
		{"crlf", "line one\r\nline two\r\n", 0},
		{"lf only", "line one\nline two\n", 1},
		{"non ascii", "caf\xc3\xa9\r\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, []simdevice.Option{
				simdevice.WithFile("README.TXT", []byte(tt.contents)),
			})
			app := simdevice.Firmware(0, 0x1000)

			res, err := f.v.Run(context.Background(), validator.Scenario{
				Name:     "contents",
				Source:   app,
				FileName: "image.bin",
				Expect:   validator.Success{Data: app},
			}, nil)
			require.NoError(t, err)
			require.Contains(t, res.Messages(report.LevelInfo), "Data matches")
			require.Equal(t, tt.failures, res.Counts().Failures)
			if tt.failures > 0 {
				require.ErrorContains(t, res.Err(), "README.TXT")
			}
		})
	}
}
