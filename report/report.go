// Package report accumulates the results of a device test as a tree of
// named tests holding info, warning and failure messages.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// Level is the severity of a message. Higher is more severe.
type Level int

const (
	LevelInfo Level = iota + 1
	LevelWarning
	LevelFailure
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "Info"
	case LevelWarning:
		return "Warning"
	case LevelFailure:
		return "Failure"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

type entry struct {
	level   Level
	msg     string
	subtest *Test
}

// Counts is the number of messages in a test and all of its subtests.
type Counts struct {
	Failures int
	Warnings int
	Infos    int
}

// Test is a node in the result tree. It is safe for concurrent use.
type Test struct {
	name   string
	logger log.FieldLogger

	mu      sync.Mutex
	entries []entry
}

// New returns an empty root test. Messages are echoed to logger as they are
// added; a nil logger keeps the test silent.
func New(name string, logger log.FieldLogger) *Test {
	t := &Test{name: name, logger: logger}
	t.logf(log.InfoLevel, "SubTest: %s", name)
	return t
}

// Name returns the test name.
func (t *Test) Name() string {
	return t.name
}

// Failure records a failure.
func (t *Test) Failure(format string, args ...interface{}) {
	t.add(LevelFailure, fmt.Sprintf(format, args...))
}

// Warning records a warning.
func (t *Test) Warning(format string, args ...interface{}) {
	t.add(LevelWarning, fmt.Sprintf(format, args...))
}

// Info records an informational message.
func (t *Test) Info(format string, args ...interface{}) {
	t.add(LevelInfo, fmt.Sprintf(format, args...))
}

// Subtest creates and attaches a child test.
func (t *Test) Subtest(name string) *Test {
	sub := New(name, t.logger)
	t.Attach(sub)
	return sub
}

// Attach adds an existing test as a child.
func (t *Test) Attach(sub *Test) {
	t.mu.Lock()
	t.entries = append(t.entries, entry{subtest: sub})
	t.mu.Unlock()
}

func (t *Test) add(level Level, msg string) {
	switch level {
	case LevelFailure:
		t.logf(log.ErrorLevel, "Failure: %s", msg)
	case LevelWarning:
		t.logf(log.WarnLevel, "Warning: %s", msg)
	default:
		t.logf(log.InfoLevel, "Info: %s", msg)
	}
	t.mu.Lock()
	t.entries = append(t.entries, entry{level: level, msg: msg})
	t.mu.Unlock()
}

func (t *Test) logf(level log.Level, format string, args ...interface{}) {
	if t.logger == nil {
		return
	}
	t.logger.WithField("test", t.name).Logf(level, format, args...)
}

func (t *Test) snapshot() []entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]entry(nil), t.entries...)
}

// Counts returns the message counts of t and its subtests.
func (t *Test) Counts() Counts {
	var c Counts
	for _, e := range t.snapshot() {
		if e.subtest != nil {
			sc := e.subtest.Counts()
			c.Failures += sc.Failures
			c.Warnings += sc.Warnings
			c.Infos += sc.Infos
			continue
		}
		switch e.level {
		case LevelFailure:
			c.Failures++
		case LevelWarning:
			c.Warnings++
		case LevelInfo:
			c.Infos++
		}
	}
	return c
}

// Failed reports whether t or any subtest recorded a failure.
func (t *Test) Failed() bool {
	return t.Counts().Failures > 0
}

// Warned reports whether t or any subtest recorded a warning.
func (t *Test) Warned() bool {
	return t.Counts().Warnings > 0
}

// Messages returns the messages of t at exactly level, excluding subtests.
func (t *Test) Messages(level Level) []string {
	var msgs []string
	for _, e := range t.snapshot() {
		if e.subtest == nil && e.level == level {
			msgs = append(msgs, e.msg)
		}
	}
	return msgs
}

// Err folds every failure in the tree into a *multierror.Error, or returns
// nil when nothing failed. Each failure is prefixed with the path of the
// test that recorded it.
func (t *Test) Err() error {
	var result *multierror.Error
	t.collect(nil, &result)
	return result.ErrorOrNil()
}

func (t *Test) collect(path []string, result **multierror.Error) {
	path = append(path, t.name)
	for _, e := range t.snapshot() {
		if e.subtest != nil {
			e.subtest.collect(path, result)
			continue
		}
		if e.level == LevelFailure {
			*result = multierror.Append(*result, fmt.Errorf("%s: %s", strings.Join(path, "/"), e.msg))
		}
	}
}

// Print writes the result tree to w. Messages below level are omitted, as
// are subtests whose result is below level. maxDepth limits the subtest
// depth whose messages are printed; a negative value prints every level.
func (t *Test) Print(w io.Writer, level Level, maxDepth int) error {
	return t.print(w, level, maxDepth, 0)
}

func (t *Test) print(w io.Writer, level Level, maxDepth, depth int) error {
	result, resultLevel := "Pass", LevelInfo
	switch c := t.Counts(); {
	case c.Failures > 0:
		result, resultLevel = "Failure", LevelFailure
	case c.Warnings > 0:
		result, resultLevel = "Warning", LevelWarning
	}
	if resultLevel < level && depth != 0 {
		return nil
	}

	indent := strings.Repeat("  ", depth)
	if _, err := fmt.Fprintf(w, "%sTest: %s: %s\n", indent, t.name, result); err != nil {
		return err
	}
	if maxDepth >= 0 && depth > maxDepth {
		return nil
	}

	indent = strings.Repeat("  ", depth+1)
	for _, e := range t.snapshot() {
		if e.subtest != nil {
			if err := e.subtest.print(w, level, maxDepth, depth+1); err != nil {
				return err
			}
			continue
		}
		if e.level >= level {
			if _, err := fmt.Fprintf(w, "%s%s: %s\n", indent, e.level, e.msg); err != nil {
				return err
			}
		}
	}
	return nil
}
