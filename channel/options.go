package channel

import "time"

// Logger is an optional logging interface, compatible with the one used by
// the validator package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Config holds the channel configuration.
type Config struct {
	// Logger is used for logging operations (optional)
	Logger Logger

	// RemountTimeout bounds each of the dismount and mount waits
	RemountTimeout time.Duration

	// PollInterval is the delay between two drive checks
	PollInterval time.Duration

	// CheckFSOnRemount runs CheckFilesystem after every remount
	CheckFSOnRemount bool

	// AssertAutoManage reports and clears ASSERT.TXT after every remount
	// when CheckFSOnRemount is set
	AssertAutoManage bool
}

func defaultConfig() Config {
	return Config{
		RemountTimeout: 600 * time.Second,
		PollInterval:   100 * time.Millisecond,
	}
}

// Option is a functional option for configuring a Channel.
type Option func(*Config)

// WithLogger sets a logger for channel operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRemountTimeout sets the bound of each remount wait.
//
// Example:
//
//	ch, err := channel.New(ctx, fs, disc, uid, channel.WithRemountTimeout(time.Minute))
func WithRemountTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.RemountTimeout = timeout
		}
	}
}

// WithPollInterval sets the delay between two drive checks.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

// WithCheckFSOnRemount enables filesystem checks after every remount. It
// also enables automatic assertion management, as
// Channel.SetCheckFSOnRemount does.
func WithCheckFSOnRemount(enabled bool) Option {
	return func(c *Config) {
		c.CheckFSOnRemount = enabled
		c.AssertAutoManage = enabled
	}
}

// WithAssertAutoManage enables reporting and clearing ASSERT.TXT after
// every checked remount.
func WithAssertAutoManage(enabled bool) Option {
	return func(c *Config) {
		c.AssertAutoManage = enabled
	}
}
