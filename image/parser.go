package image

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marcinbor85/gohex"
)

// FormatFromPath returns FormatBinary for a ".bin" extension (any case) and
// FormatHex for everything else.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".bin") {
		return FormatBinary
	}
	return FormatHex
}

// Parse loads an image file, choosing the format from its extension.
// Binary files are placed at address 0.
//
// Example:
//
//	img, err := image.Parse("k20dx_bl.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Parse(path string) (*Image, error) {
	return ParseFile(path, FormatFromPath(path), 0)
}

// ParseFile loads an image file in the given format. offset is the load
// address used for binary files and ignored for hex files.
func ParseFile(path string, format Format, offset uint32) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := ParseReader(f, format, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ParseReader loads an image from r.
func ParseReader(r io.Reader, format Format, offset uint32) (*Image, error) {
	switch format {
	case FormatHex:
		return parseHex(r)
	case FormatBinary:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read binary: %w", err)
		}
		if len(data) == 0 {
			return nil, ErrEmpty
		}
		return &Image{Start: offset, Data: data}, nil
	default:
		return nil, fmt.Errorf("unsupported image format %v", format)
	}
}

func parseHex(r io.Reader) (*Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("failed to parse intel hex: %w", err)
	}

	segs := coalesce(mem.GetDataSegments())
	switch len(segs) {
	case 0:
		return nil, ErrEmpty
	case 1:
		return &Image{Start: segs[0].Address, Data: segs[0].Data}, nil
	}

	e := &RegionError{Regions: make([]Region, 0, len(segs))}
	for _, s := range segs {
		e.Regions = append(e.Regions, Region{Start: s.Address, Size: len(s.Data)})
	}
	return nil, e
}

// coalesce merges segments whose address ranges touch.
func coalesce(segs []gohex.DataSegment) []gohex.DataSegment {
	sort.Slice(segs, func(i, j int) bool { return segs[i].Address < segs[j].Address })

	out := make([]gohex.DataSegment, 0, len(segs))
	for _, s := range segs {
		if len(s.Data) == 0 {
			continue
		}
		if n := len(out); n > 0 {
			last := &out[n-1]
			if uint64(last.Address)+uint64(len(last.Data)) == uint64(s.Address) {
				last.Data = append(last.Data, s.Data...)
				continue
			}
		}
		data := make([]byte, len(s.Data))
		copy(data, s.Data)
		out = append(out, gohex.DataSegment{Address: s.Address, Data: data})
	}
	return out
}

// Encode writes the image to w in the given format.
func Encode(w io.Writer, img *Image, format Format) error {
	switch format {
	case FormatHex:
		mem := gohex.NewMemory()
		if err := mem.AddBinary(img.Start, img.Data); err != nil {
			return fmt.Errorf("failed to add image data: %w", err)
		}
		if err := mem.DumpIntelHex(w, HexLineSize); err != nil {
			return fmt.Errorf("failed to write intel hex: %w", err)
		}
		return nil
	case FormatBinary:
		if _, err := w.Write(img.Data); err != nil {
			return fmt.Errorf("failed to write binary: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported image format %v", format)
	}
}

// EncodeBytes returns the image encoded in the given format.
func EncodeBytes(img *Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HexLineSize is the number of data bytes per Intel HEX record written by
// Encode.
const HexLineSize = 16
