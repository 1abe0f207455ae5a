package protocol

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var kvpLine = regexp.MustCompile(`^([a-zA-Z0-9 ]+): +(.+)$`)

// ParseKVP reads "Key: value" lines from r.
//
// Blank lines and lines starting with '#' are skipped. Lines that do not
// match the format and repeated keys are returned as *ParseError defects;
// the first value of a repeated key is kept. The returned error is only
// set when reading fails.
func ParseKVP(r io.Reader, name string) (map[string]string, []error, error) {
	kvp := make(map[string]string)
	var defects []error

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" || line[0] == '#' {
			continue
		}

		m := kvpLine.FindStringSubmatch(line)
		if m == nil {
			defects = append(defects, &ParseError{File: name, Line: lineNum, Reason: fmt.Sprintf("invalid line: %s", line)})
			continue
		}

		key := strings.ReplaceAll(strings.ToLower(m[1]), " ", "_")
		value := strings.TrimSpace(strings.ToLower(m[2]))
		if _, dup := kvp[key]; dup {
			defects = append(defects, &ParseError{File: name, Line: lineNum, Reason: fmt.Sprintf("duplicate key %s", key)})
			continue
		}
		kvp[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return kvp, defects, nil
}

// FormatKVP writes pairs as "Key: value\r\n" lines in order.
func FormatKVP(w io.Writer, pairs [][2]string) error {
	for _, p := range pairs {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}
