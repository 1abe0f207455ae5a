package builder

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/moffa90/go-daplink/image"
	"github.com/spf13/afero"
)

// cArrayBytesPerLine is the number of bytes per line in a C array file.
const cArrayBytesPerLine = 0x20

// GenericCFile is the board independent copy of the C array, written next
// to the other outputs and overwritten by every build in the directory.
const GenericCFile = "bootloader_image.c"

// Legacy file names are fixed whatever the actual start and pad addresses
// are; older release tooling looks them up by name.
const (
	legacySuffix       = "_legacy_0x8000.bin"
	legacyPaddedSuffix = "_legacy_0x5000.bin"
)

type outputFile struct {
	name string
	fn   func(io.Writer) error
}

// OutputBase joins the non-empty name parts with "-", as in
// "k20dx_if-0240-0001".
func OutputBase(output, boardID, familyID, binOffset string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{output, boardID, familyID, binOffset} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// Write writes the output files to dir on the host filesystem and returns
// their paths. See WriteFs.
func (r *Result) Write(dir, base string) ([]string, error) {
	return r.WriteFs(afero.NewOsFs(), dir, base)
}

// WriteFs writes the output files to dir on fs:
//
//	<base>.hex, <base>.bin  primary artifact
//	<base>.txt              CRC as "0x%08x\r\n"
//	<base>.c                C array of the artifact
//	bootloader_image.c      same C array under a fixed name
//
// and, when a legacy variant exists:
//
//	<base>_legacy_0x8000.bin  legacy artifact
//	<base>_legacy_0x5000.bin  padded legacy artifact
//	<base>_legacy.txt         legacy CRC
func (r *Result) WriteFs(fs afero.Fs, dir, base string) ([]string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	write := func(name string, fn func(w io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := fs.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}
	bytesOut := func(b []byte) func(io.Writer) error {
		return func(w io.Writer) error {
			_, err := w.Write(b)
			return err
		}
	}

	a := r.Artifact
	files := []outputFile{
		{base + ".hex", func(w io.Writer) error { return image.Encode(w, a.Image, image.FormatHex) }},
		{base + ".bin", bytesOut(a.Bytes())},
		{base + ".txt", bytesOut([]byte(crcText(a.CRC)))},
		{base + ".c", func(w io.Writer) error { return WriteCArray(w, a.Image) }},
		{GenericCFile, func(w io.Writer) error { return WriteCArray(w, a.Image) }},
	}
	if l := r.Legacy; l != nil {
		files = append(files,
			outputFile{base + legacySuffix, bytesOut(l.Bytes())},
			outputFile{base + legacyPaddedSuffix, bytesOut(l.Padded)},
			outputFile{base + "_legacy.txt", bytesOut([]byte(crcText(l.CRC)))},
		)
	}

	for _, f := range files {
		if err := write(f.name, f.fn); err != nil {
			return written, err
		}
	}
	return written, nil
}

func crcText(crc uint32) string {
	return fmt.Sprintf("0x%08x\r\n", crc)
}

// WriteCArray writes img as a C source file declaring image_start,
// image_size and image_data.
func WriteCArray(w io.Writer, img *image.Image) error {
	var b strings.Builder
	fmt.Fprintf(&b, "static const unsigned int image_start = 0x%08x;\n", img.Start)
	fmt.Fprintf(&b, "static const unsigned int image_size = 0x%08x;\n", img.Size())
	fmt.Fprintf(&b, "static const char image_data[0x%08x] = {\n    ", img.Size())
	for i, v := range img.Data {
		fmt.Fprintf(&b, "0x%02x, ", v)
		if (i+1)%cArrayBytesPerLine == 0 {
			b.WriteString("\n    ")
		}
	}
	b.WriteString("};\n")

	_, err := io.WriteString(w, b.String())
	return err
}
