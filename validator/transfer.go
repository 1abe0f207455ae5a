package validator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// transfer writes the scenario file to the drive and returns the number of
// bytes written.
func (v *Validator) transfer(ctx context.Context, sc Scenario, report func(written, total int)) (int, error) {
	fs := v.ch.Fs()
	switch s := sc.Strategy.(type) {
	case Copy:
		name := sc.FileName
		if name == "" {
			name = filepath.Base(s.Path)
		}
		return v.copyFile(ctx, s.Path, name, report)
	case Chunked:
		size := s.FlushSize
		if size <= 0 {
			size = len(sc.Source)
		}
		delay := s.Delay
		if delay == 0 {
			delay = v.config.ChunkDelay
		}
		dst := v.ch.Path(sc.FileName)
		written := 0
		for {
			end := written + size
			if end > len(sc.Source) {
				end = len(sc.Source)
			}
			if err := appendFile(fs, dst, sc.Source[written:end]); err != nil {
				return written, err
			}
			written = end
			report(written, len(sc.Source))
			if written == len(sc.Source) {
				break
			}
			if err := sleep(ctx, delay); err != nil {
				return written, err
			}
		}
		return written, nil
	case Write, nil:
		if err := afero.WriteFile(fs, v.ch.Path(sc.FileName), sc.Source, 0o644); err != nil {
			return 0, err
		}
		report(len(sc.Source), len(sc.Source))
		return len(sc.Source), nil
	default:
		return 0, fmt.Errorf("unsupported strategy %T", s)
	}
}

func (v *Validator) copyFile(ctx context.Context, src, name string, report func(written, total int)) (int, error) {
	in, err := v.config.HostFs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	total := 0
	if fi, err := in.Stat(); err == nil {
		total = int(fi.Size())
	}

	out, err := v.ch.Fs().OpenFile(v.ch.Path(name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return int(n), err
	}
	report(int(n), total)
	return int(n), nil
}

func appendFile(fs afero.Fs, name string, data []byte) error {
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeMocks creates dirs then files on the drive.
func (v *Validator) writeMocks(dirs []string, files []MockFile) error {
	fs := v.ch.Fs()
	for _, d := range dirs {
		if err := fs.MkdirAll(v.ch.Path(path.Clean(d)), 0o755); err != nil {
			return err
		}
	}
	for _, f := range files {
		if err := afero.WriteFile(fs, v.ch.Path(path.Clean(f.Name)), []byte(f.Contents), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
