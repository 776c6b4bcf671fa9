package device

import (
	"time"

	"aes1660-go/internal/protocol"
	"aes1660-go/internal/types"
)

// Sink receives every decoded capture. Sink errors are logged and never end
// the session.
type Sink interface {
	WriteCapture(c types.Capture) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(c types.Capture) error

func (f SinkFunc) WriteCapture(c types.Capture) error { return f(c) }

// Config holds the session configuration.
type Config struct {
	// Logger receives protocol diagnostics (optional)
	Logger protocol.Logger

	// Sinks receive decoded captures in order
	Sinks []Sink

	// Now stamps captures; defaults to time.Now
	Now func() time.Time
}

func defaultConfig() Config {
	return Config{Now: time.Now}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithLogger sets the logger used for diagnostics and tag mismatches.
func WithLogger(logger protocol.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithSink appends capture sinks.
//
// Example:
//
//	s := device.New(port, cmds, &abort, device.WithSink(writer, rawLog))
func WithSink(sinks ...Sink) Option {
	return func(c *Config) {
		for _, s := range sinks {
			if s != nil {
				c.Sinks = append(c.Sinks, s)
			}
		}
	}
}

// WithClock replaces the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}
