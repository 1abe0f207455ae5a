package image

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/marcinbor85/gohex"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"fw.bin", FormatBinary},
		{"FW.BIN", FormatBinary},
		{"fw.hex", FormatHex},
		{"fw.ihex", FormatHex},
		{"fw", FormatHex},
		{"dir.bin/fw.hex", FormatHex},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FormatFromPath(tt.path); got != tt.want {
				t.Errorf("FormatFromPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParseReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		format  Format
		offset  uint32
		want    *Image
		wantErr error
	}{
		{
			name:   "single hex record",
			input:  ":0400000001020304F2\n:00000001FF\n",
			format: FormatHex,
			want:   &Image{Start: 0, Data: []byte{1, 2, 3, 4}},
		},
		{
			name:   "binary at offset",
			input:  "\x01\x02\x03\x04",
			format: FormatBinary,
			offset: 0x8000,
			want:   &Image{Start: 0x8000, Data: []byte{1, 2, 3, 4}},
		},
		{
			name:    "empty binary",
			input:   "",
			format:  FormatBinary,
			wantErr: ErrEmpty,
		},
		{
			name:    "hex without data",
			input:   ":00000001FF\n",
			format:  FormatHex,
			wantErr: ErrEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReader(strings.NewReader(tt.input), tt.format, tt.offset)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseReader() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReader() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseReader() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseReaderInvalidHex(t *testing.T) {
	_, err := ParseReader(strings.NewReader(":04000000010203\n"), FormatHex, 0)
	if err == nil {
		t.Fatal("ParseReader() expected error for truncated record")
	}
}

func TestParseReaderMultipleRegions(t *testing.T) {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(0x8000, bytes.Repeat([]byte{0xAA}, 32)); err != nil {
		t.Fatal(err)
	}
	if err := mem.AddBinary(0x9000, bytes.Repeat([]byte{0xBB}, 16)); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := mem.DumpIntelHex(&buf, 16); err != nil {
		t.Fatal(err)
	}

	_, err := ParseReader(&buf, FormatHex, 0)
	if !errors.Is(err, ErrMultipleRegions) {
		t.Fatalf("ParseReader() error = %v, want ErrMultipleRegions", err)
	}

	var re *RegionError
	if !errors.As(err, &re) {
		t.Fatalf("ParseReader() error type = %T, want *RegionError", err)
	}
	want := []Region{{Start: 0x8000, Size: 32}, {Start: 0x9000, Size: 16}}
	if diff := cmp.Diff(want, re.Regions); diff != "" {
		t.Errorf("Regions mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeHexRoundTrip(t *testing.T) {
	data := make([]byte, 0x1234)
	for i := range data {
		data[i] = byte(i * 7)
	}
	img := New(0x08004000, data)

	raw, err := EncodeBytes(img, FormatHex)
	if err != nil {
		t.Fatalf("EncodeBytes() error: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte(":")) {
		t.Fatalf("EncodeBytes() output does not look like intel hex: %q", raw[:16])
	}

	got, err := ParseReader(bytes.NewReader(raw), FormatHex, 0)
	if err != nil {
		t.Fatalf("ParseReader() error: %v", err)
	}
	if diff := cmp.Diff(img, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	img := New(0x5000, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	hexPath := filepath.Join(dir, "fw.hex")
	raw, err := EncodeBytes(img, FormatHex)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(hexPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	binPath := filepath.Join(dir, "fw.bin")
	if err := os.WriteFile(binPath, img.Data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Parse(hexPath)
	if err != nil {
		t.Fatalf("Parse(hex) error: %v", err)
	}
	if diff := cmp.Diff(img, got); diff != "" {
		t.Errorf("Parse(hex) mismatch (-want +got):\n%s", diff)
	}

	got, err = ParseFile(binPath, FormatBinary, 0x5000)
	if err != nil {
		t.Fatalf("ParseFile(bin) error: %v", err)
	}
	if diff := cmp.Diff(img, got); diff != "" {
		t.Errorf("ParseFile(bin) mismatch (-want +got):\n%s", diff)
	}

	if _, err := Parse(filepath.Join(dir, "missing.hex")); err == nil {
		t.Error("Parse() expected error for missing file")
	}
}
