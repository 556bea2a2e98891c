package transfer

import (
	"time"

	"argentum/protocol"
)

// Config holds the transfer configuration
type Config struct {
	// Compress uploads the firing-compressed form when it is smaller
	Compress bool

	// ReadyTimeout bounds the wait for the Ready line after recv
	ReadyTimeout time.Duration

	// ReplyTimeout bounds the wait for each block's reply byte
	ReplyTimeout time.Duration

	// MaxFailures is the number of rejected blocks tolerated per transfer
	MaxFailures int
}

func defaultConfig() Config {
	return Config{
		Compress:     true,
		ReadyTimeout: protocol.ReplyTimeout,
		ReplyTimeout: protocol.ReplyTimeout,
		MaxFailures:  protocol.MaxBlockFailures,
	}
}

// Option is a functional option for configuring a Session
type Option func(*Config)

// WithCompression enables or disables the compressed upload form. Files
// that are not print jobs must be sent with compression disabled.
func WithCompression(enabled bool) Option {
	return func(c *Config) {
		c.Compress = enabled
	}
}

// WithReplyTimeout sets the per-block reply window
func WithReplyTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ReplyTimeout = timeout
		}
	}
}

// WithReadyTimeout sets how long to wait for the device to accept recv
func WithReadyTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ReadyTimeout = timeout
		}
	}
}

// WithMaxFailures sets how many rejected blocks a transfer survives
func WithMaxFailures(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxFailures = n
		}
	}
}
