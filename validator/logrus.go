package validator

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus logger to Logger. Key-value pairs become
// logrus fields.
type LogrusLogger struct {
	logger log.FieldLogger
}

// NewLogrusLogger returns a Logger writing to logger.
func NewLogrusLogger(logger log.FieldLogger) *LogrusLogger {
	return &LogrusLogger{logger: logger}
}

func (l *LogrusLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Info(msg)
}

func (l *LogrusLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l *LogrusLogger) entry(keysAndValues []interface{}) log.FieldLogger {
	if len(keysAndValues) == 0 {
		return l.logger
	}
	fields := make(log.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
		} else {
			fields[key] = "(missing)"
		}
	}
	return l.logger.WithFields(fields)
}
