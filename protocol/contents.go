package protocol

import (
	"bytes"
	"regexp"
)

var (
	nonASCII       = regexp.MustCompile(`[^\x20-\x7F\r\n]`)
	nonCRLF        = regexp.MustCompile(`\r[^\n]|[^\r]\n`)
	trailingSpaces = regexp.MustCompile(` \r| \n`)
	ignoredFiles   = regexp.MustCompile(`^\._\.Trashes`)
)

// IssueLevel is the severity of a content problem.
type IssueLevel int

const (
	// LevelWarning does not fail a test
	LevelWarning IssueLevel = iota + 1

	// LevelFailure fails a test
	LevelFailure
)

func (l IssueLevel) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// ContentIssue is a problem found by CheckContents.
type ContentIssue struct {
	Level  IssueLevel
	Reason string
}

// CheckContents checks a file published by the device. It returns the
// first problem found, in order: non-ASCII characters (failure), line
// endings other than CRLF (failure), trailing whitespace (warning) and a
// missing final CRLF (warning). It returns nil for a valid file.
func CheckContents(data []byte) *ContentIssue {
	switch {
	case nonASCII.Match(data):
		return &ContentIssue{Level: LevelFailure, Reason: "non ascii characters"}
	case nonCRLF.Match(data):
		return &ContentIssue{Level: LevelFailure, Reason: "non-standard line endings"}
	case trailingSpaces.Match(data):
		return &ContentIssue{Level: LevelWarning, Reason: "trailing whitespace"}
	case !bytes.HasSuffix(data, []byte("\r\n")):
		return &ContentIssue{Level: LevelWarning, Reason: "no newline at end of file"}
	}
	return nil
}

// IgnoredFile reports whether a file on the drive is created by the host
// operating system and must be skipped by content checks.
func IgnoredFile(name string) bool {
	return ignoredFiles.MatchString(name)
}
