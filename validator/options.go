package validator

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Config holds the validator configuration.
type Config struct {
	// ProgressCallback is called during a scenario to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// ReportLogger receives every message recorded in the test reports (optional)
	ReportLogger log.FieldLogger

	// MemoryReader reads target memory back for CheckMemory (optional)
	MemoryReader MemoryReader

	// HostFs holds the source files of Copy transfers and plans
	HostFs afero.Fs

	// Attempts is the number of times a scenario is tried on transient errors
	Attempts int

	// RetryDelay is the delay before retrying a scenario
	RetryDelay time.Duration

	// SettleDelay is waited before every attempt so the host OS can finish
	// its own writes to a freshly mounted drive
	SettleDelay time.Duration

	// ChunkDelay is the default delay between two Chunked writes
	ChunkDelay time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		HostFs:      afero.NewOsFs(),
		Attempts:    5,
		RetryDelay:  30 * time.Second,
		SettleDelay: 2 * time.Second,
		ChunkDelay:  100 * time.Millisecond,
	}
}

// Option is a functional option for configuring the Validator.
type Option func(*Config)

// WithProgressCallback sets a callback function to track scenario progress.
//
// Example:
//
//	v := validator.New(ch,
//	    validator.WithProgressCallback(func(p validator.Progress) {
//	        fmt.Printf("%s: %.1f%% complete\n", p.Phase, p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the validator operations.
//
// Example:
//
//	v := validator.New(ch, validator.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithReportLogger echoes every report message to logger as it is
// recorded.
func WithReportLogger(logger log.FieldLogger) Option {
	return func(c *Config) {
		c.ReportLogger = logger
	}
}

// WithMemoryReader sets the debug probe used to read target memory back.
func WithMemoryReader(r MemoryReader) Option {
	return func(c *Config) {
		c.MemoryReader = r
	}
}

// WithHostFs sets the filesystem Copy sources and plan files are read from.
// Default is the OS filesystem.
func WithHostFs(fs afero.Fs) Option {
	return func(c *Config) {
		if fs != nil {
			c.HostFs = fs
		}
	}
}

// WithRetries sets the number of attempts and the delay between them.
//
// Example:
//
//	v := validator.New(ch, validator.WithRetries(3, 10*time.Second))
func WithRetries(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.Attempts = attempts
		}
		if delay >= 0 {
			c.RetryDelay = delay
		}
	}
}

// WithSettleDelay sets the delay before every attempt. Default is 2s.
func WithSettleDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.SettleDelay = delay
		}
	}
}

// WithChunkDelay sets the default delay between Chunked writes.
// Default is 100ms.
func WithChunkDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.ChunkDelay = delay
		}
	}
}
