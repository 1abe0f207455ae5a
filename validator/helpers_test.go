package validator_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-daplink/channel"
	"github.com/moffa90/go-daplink/image"
	"github.com/moffa90/go-daplink/internal/simdevice"
	"github.com/moffa90/go-daplink/validator"
)

const (
	mount = "/media/DAPLINK"

	blStart = 0x08000000
	blSize  = 0x4000
	ifStart = 0x08004000
	ifSize  = 0x8000
)

// flakyFs fails writes of image files on the drive with EIO while
// failures is not zero. A negative value fails forever.
type flakyFs struct {
	afero.Fs

	mu       sync.Mutex
	failures int
	writes   []string
}

func (f *flakyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 && strings.HasPrefix(name, mount) {
		f.mu.Lock()
		f.writes = append(f.writes, strings.TrimPrefix(name, mount+"/"))
		ext := strings.ToLower(filepath.Ext(name))
		fail := f.failures != 0 && (ext == ".bin" || ext == ".hex")
		if fail && f.failures > 0 {
			f.failures--
		}
		f.mu.Unlock()
		if fail {
			return nil, &fs.PathError{Op: "open", Path: name, Err: syscall.EIO}
		}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *flakyFs) Create(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (f *flakyFs) setFailures(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

func (f *flakyFs) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

type fixture struct {
	dev  *simdevice.Device
	fs   *flakyFs
	host afero.Fs
	ch   *channel.Channel
	v    *validator.Validator
}

func newFixture(t *testing.T, devOpts []simdevice.Option, opts ...validator.Option) *fixture {
	t.Helper()
	mem := afero.NewMemMapFs()
	devOpts = append([]simdevice.Option{
		simdevice.WithBootloader(blStart, simdevice.Firmware(blStart, blSize)),
		simdevice.WithInterface(ifStart, simdevice.Firmware(ifStart, ifSize)),
	}, devOpts...)
	dev, err := simdevice.New(mem, mount, devOpts...)
	require.NoError(t, err)

	fsys := &flakyFs{Fs: mem}
	ch, err := channel.New(context.Background(), fsys, dev, dev.UniqueID(),
		channel.WithPollInterval(time.Millisecond),
		channel.WithRemountTimeout(2*time.Second),
	)
	require.NoError(t, err)

	host := afero.NewMemMapFs()
	opts = append([]validator.Option{
		validator.WithHostFs(host),
		validator.WithMemoryReader(dev),
		validator.WithSettleDelay(0),
		validator.WithChunkDelay(0),
		validator.WithRetries(3, 0),
	}, opts...)
	return &fixture{
		dev:  dev,
		fs:   fsys,
		host: host,
		ch:   ch,
		v:    validator.New(ch, opts...),
	}
}

// writeHost stores data on the host fs, and its hex encoding at start when
// hexPath is not empty.
func (f *fixture) writeHost(t *testing.T, binPath, hexPath string, start uint32, data []byte) {
	t.Helper()
	if binPath != "" {
		require.NoError(t, afero.WriteFile(f.host, binPath, data, 0o644))
	}
	if hexPath != "" {
		hex, err := image.EncodeBytes(image.New(start, data), image.FormatHex)
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(f.host, hexPath, hex, 0o644))
	}
}

func hexOf(t *testing.T, start uint32, data []byte) []byte {
	t.Helper()
	hex, err := image.EncodeBytes(image.New(start, data), image.FormatHex)
	require.NoError(t, err)
	return hex
}
