package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMode is returned when DETAILS.TXT has no daplink_mode, which
	// happens while the device is still publishing its files.
	ErrNoMode = errors.New("details has no daplink_mode")
)

// ParseError describes a malformed line in a device file.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// DetailError describes a DETAILS.TXT entry that is missing or has the
// wrong format.
type DetailError struct {
	Key    string
	Value  string
	Reason string
}

func (e *DetailError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("details %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("details %s=%q: %s", e.Key, e.Value, e.Reason)
}
