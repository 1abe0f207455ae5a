package validator

import "time"

// Progress phases.
const (
	PhaseMode     = "mode"
	PhaseTransfer = "transfer"
	PhaseRemount  = "remount"
	PhaseVerify   = "verify"
	PhaseComplete = "complete"
)

// Progress contains information about a running scenario.
// Passed to ProgressCallback during Run.
type Progress struct {
	// Scenario is the name of the running scenario
	Scenario string

	// Attempt is the current attempt, starting at 1
	Attempt int

	// Phase describes the current operation phase:
	//   "mode"     - Switching the device to the scenario mode
	//   "transfer" - Writing the file to the drive
	//   "remount"  - Waiting for the device to remount
	//   "verify"   - Checking the outcome
	//   "complete" - Scenario finished
	Phase string

	// BytesWritten is the number of bytes written to the drive so far
	BytesWritten int

	// TotalBytes is the size of the transferred file
	TotalBytes int

	// Percentage is the transfer completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the attempt started
	ElapsedTime time.Duration
}

// ProgressCallback is called during a scenario to report progress.
// Implementations should return quickly.
//
// Example:
//
//	v := validator.New(ch,
//	    validator.WithProgressCallback(func(p validator.Progress) {
//	        fmt.Printf("[%s] %s %.1f%%\n", p.Scenario, p.Phase, p.Percentage)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the
// validator. It has the same method set as channel.Logger, so one value
// can serve both.
//
// Example with logrus:
//
//	v := validator.New(ch, validator.WithLogger(validator.NewLogrusLogger(logrus.StandardLogger())))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
