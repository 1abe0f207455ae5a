package builder

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moffa90/go-daplink/image"
	"github.com/spf13/afero"
)

func TestOutputBase(t *testing.T) {
	tests := []struct {
		parts [4]string
		want  string
	}{
		{[4]string{"out/k20dx_if", "", "", ""}, "out/k20dx_if"},
		{[4]string{"k20dx_if", "0240", "", ""}, "k20dx_if-0240"},
		{[4]string{"k20dx_if", "0240", "0001", "0x8000"}, "k20dx_if-0240-0001-0x8000"},
		{[4]string{"bl", "", "0001", ""}, "bl-0001"},
	}
	for _, tt := range tests {
		if got := OutputBase(tt.parts[0], tt.parts[1], tt.parts[2], tt.parts[3]); got != tt.want {
			t.Errorf("OutputBase(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestWriteFs(t *testing.T) {
	res, err := Assemble(testImage(0x8000, 0x800))
	if err != nil {
		t.Fatal(err)
	}
	fs := afero.NewMemMapFs()

	paths, err := res.WriteFs(fs, "build", "fw")
	if err != nil {
		t.Fatalf("WriteFs() error: %v", err)
	}
	want := []string{
		filepath.Join("build", "fw.hex"),
		filepath.Join("build", "fw.bin"),
		filepath.Join("build", "fw.txt"),
		filepath.Join("build", "fw.c"),
		filepath.Join("build", GenericCFile),
		filepath.Join("build", "fw_legacy_0x8000.bin"),
		filepath.Join("build", "fw_legacy_0x5000.bin"),
		filepath.Join("build", "fw_legacy.txt"),
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("WriteFs() paths mismatch (-want +got):\n%s", diff)
	}

	read := func(name string) []byte {
		t.Helper()
		b, err := afero.ReadFile(fs, filepath.Join("build", name))
		if err != nil {
			t.Fatal(err)
		}
		return b
	}

	if !bytes.Equal(read("fw.bin"), res.Artifact.Bytes()) {
		t.Error("fw.bin differs from artifact")
	}
	hexImg, err := image.ParseReader(bytes.NewReader(read("fw.hex")), image.FormatHex, 0)
	if err != nil {
		t.Fatalf("parse fw.hex: %v", err)
	}
	if diff := cmp.Diff(res.Artifact.Image, hexImg); diff != "" {
		t.Errorf("fw.hex mismatch (-want +got):\n%s", diff)
	}
	if got, want := string(read("fw.txt")), crcText(res.Artifact.CRC); got != want {
		t.Errorf("fw.txt = %q, want %q", got, want)
	}
	if !strings.HasSuffix(string(read("fw_legacy.txt")), "\r\n") {
		t.Error("fw_legacy.txt missing CRLF")
	}
	if !bytes.Equal(read("fw_legacy_0x5000.bin"), res.Legacy.Padded) {
		t.Error("padded legacy file mismatch")
	}
	if !bytes.Equal(read(GenericCFile), read("fw.c")) {
		t.Errorf("%s differs from fw.c", GenericCFile)
	}
}

func TestWriteFsLegacyNames(t *testing.T) {
	tests := []struct {
		start uint32
		size  int
	}{
		{0x00010000, 0x800},
		{0x00088000, 0x800},
		{0x0800C000, 0x800},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("0x%x", tt.start), func(t *testing.T) {
			res, err := Assemble(testImage(tt.start, tt.size))
			if err != nil {
				t.Fatal(err)
			}
			if res.Legacy == nil {
				t.Fatal("no legacy variant")
			}
			fs := afero.NewMemMapFs()
			if _, err := res.WriteFs(fs, "out", "if"); err != nil {
				t.Fatalf("WriteFs() error: %v", err)
			}
			for _, name := range []string{"if_legacy_0x8000.bin", "if_legacy_0x5000.bin", "if_legacy.txt"} {
				ok, err := afero.Exists(fs, filepath.Join("out", name))
				if err != nil || !ok {
					t.Errorf("%s not written", name)
				}
			}
			padded, err := afero.ReadFile(fs, filepath.Join("out", "if_legacy_0x5000.bin"))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(padded, res.Legacy.Padded) {
				t.Error("padded legacy file mismatch")
			}
		})
	}
}

func TestWriteCArray(t *testing.T) {
	img := image.New(0x8000, bytes.Repeat([]byte{0xAB}, 0x21))
	var buf bytes.Buffer
	if err := WriteCArray(&buf, img); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(buf.String(), "\n")
	want := []string{
		"static const unsigned int image_start = 0x00008000;",
		"static const unsigned int image_size = 0x00000021;",
		"static const char image_data[0x00000021] = {",
	}
	if diff := cmp.Diff(want, lines[:3]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if got := strings.Count(lines[3], "0xab, "); got != 0x20 {
		t.Errorf("first data line has %d bytes, want 32", got)
	}
	if lines[4] != "    0xab, };" {
		t.Errorf("last data line = %q", lines[4])
	}
}
