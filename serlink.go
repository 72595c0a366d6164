// Package serlink provides a minimal interactive serial-port terminal.
//
// Example usage:
//
//	cfg := serlink.DefaultConfig()
//	cfg.Device = "/dev/ttyUSB0"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := serlink.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// The session relays bytes between the controlling terminal and the device
// at a fixed 115200 8N1 until the exit keystroke (Ctrl-O), recording
// everything the device sends to a timestamped logfile that is compressed
// on clean exit.
package serlink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bft-labs/serlink/internal/relay"
	"github.com/bft-labs/serlink/internal/session"
)

// Config holds the configuration for a serial session.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = session.Config

// ExitKey is the in-band keystroke that cleanly ends a session.
const ExitKey = relay.DefaultExitKey

// Run executes one interactive session with the given configuration.
// It blocks until the exit keystroke, a fatal device or terminal error, or
// context cancellation, and always restores the terminal mode before
// returning. A non-nil error means the session failed.
func Run(ctx context.Context, cfg Config) error {
	return session.New(cfg).Run(ctx)
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set Device before calling Run.
func DefaultConfig() Config {
	return session.DefaultConfig()
}

// Logger returns the package-level zerolog logger used by the session.
func Logger() zerolog.Logger {
	return session.Logger()
}
