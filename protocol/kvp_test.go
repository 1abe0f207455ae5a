package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseKVP(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        map[string]string
		wantDefects int
	}{
		{
			name:  "normalizes keys and values",
			input: "Unique ID: ABCDEF\r\nDaplink Mode: Interface\r\n",
			want:  map[string]string{"unique_id": "abcdef", "daplink_mode": "interface"},
		},
		{
			name:  "comments and blank lines",
			input: "# DAPLink Firmware\r\n\r\nGit SHA: 0123\r\n",
			want:  map[string]string{"git_sha": "0123"},
		},
		{
			name:  "value with colon and trailing spaces",
			input: "USB Interfaces:   MSD, CDC, HID  \n",
			want:  map[string]string{"usb_interfaces": "msd, cdc, hid"},
		},
		{
			name:        "invalid line",
			input:       "no separator here\nHIC ID: 97969900\n",
			want:        map[string]string{"hic_id": "97969900"},
			wantDefects: 1,
		},
		{
			name:        "key with invalid characters",
			input:       "bad_key: 1\n",
			want:        map[string]string{},
			wantDefects: 1,
		},
		{
			name:        "duplicate key keeps first",
			input:       "Local Mods: 0\nLocal Mods: 1\n",
			want:        map[string]string{"local_mods": "0"},
			wantDefects: 1,
		},
		{
			name:        "missing space after colon",
			input:       "Key:value\n",
			want:        map[string]string{},
			wantDefects: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, defects, err := ParseKVP(strings.NewReader(tt.input), "test.txt")
			if err != nil {
				t.Fatalf("ParseKVP() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseKVP() mismatch (-want +got):\n%s", diff)
			}
			if len(defects) != tt.wantDefects {
				t.Errorf("ParseKVP() defects = %v, want %d", defects, tt.wantDefects)
			}
			for _, d := range defects {
				var pe *ParseError
				if !errors.As(d, &pe) {
					t.Errorf("defect %v is not a *ParseError", d)
				}
			}
		})
	}
}

func TestFormatKVPRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatKVP(&buf, [][2]string{{"Unique ID", "0240"}, {"Remount count", "3"}}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "Unique ID: 0240\r\nRemount count: 3\r\n"; got != want {
		t.Errorf("FormatKVP() = %q, want %q", got, want)
	}
	kvp, defects, err := ParseKVP(&buf, "x")
	if err != nil || len(defects) != 0 {
		t.Fatalf("ParseKVP() = %v, %v", defects, err)
	}
	if kvp["remount_count"] != "3" {
		t.Errorf("remount_count = %q", kvp["remount_count"])
	}
}
