package protocol

import (
	"fmt"
	"io"
	"strings"
)

const (
	errorPrefix = "error: "
	typePrefix  = "type: "
)

// ParseFailure reads FAIL.TXT. Anything but an "error: " line followed by a
// "type: " line is a *ParseError.
func ParseFailure(r io.Reader) (*Failure, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FileFail, err)
	}

	lines := splitLines(string(b))
	if len(lines) != 2 {
		return nil, &ParseError{File: FileFail, Reason: fmt.Sprintf("wrong number of lines, got %d, expected 2", len(lines))}
	}
	if !strings.HasPrefix(lines[0], errorPrefix) {
		return nil, &ParseError{File: FileFail, Line: 1, Reason: "can not parse error line"}
	}
	if !strings.HasPrefix(lines[1], typePrefix) {
		return nil, &ParseError{File: FileFail, Line: 2, Reason: "can not parse type line"}
	}
	return &Failure{
		Message:  strings.TrimPrefix(lines[0], errorPrefix),
		Category: strings.TrimPrefix(lines[1], typePrefix),
	}, nil
}

// FormatFailure renders f as published by the firmware.
func FormatFailure(w io.Writer, f *Failure) error {
	_, err := fmt.Fprintf(w, "%s%s\r\n%s%s\r\n", errorPrefix, f.Message, typePrefix, f.Category)
	return err
}

// splitLines splits on \n, \r\n and \r and drops a trailing empty line.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// ParseAssert reads ASSERT.TXT, which must name the file and line of the
// assertion.
func ParseAssert(r io.Reader) (*Assert, error) {
	kvp, _, err := ParseKVP(r, FileAssert)
	if err != nil {
		return nil, err
	}
	a := &Assert{File: kvp[KeyAssertFile], Line: kvp[KeyAssertLine]}
	if _, ok := kvp[KeyAssertFile]; !ok {
		return nil, &ParseError{File: FileAssert, Reason: "missing file"}
	}
	if _, ok := kvp[KeyAssertLine]; !ok {
		return nil, &ParseError{File: FileAssert, Reason: "missing line"}
	}
	return a, nil
}

// FormatAssert renders a as published by the firmware.
func FormatAssert(w io.Writer, a *Assert) error {
	return FormatKVP(w, [][2]string{
		{"Assert", "true"},
		{"File", a.File},
		{"Line", a.Line},
	})
}
