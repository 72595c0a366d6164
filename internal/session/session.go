// Package session wires the terminal mode controller, the serial device,
// the logfile recorder, and the relay into a single run-scoped aggregate.
package session

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/serlink/internal/device"
	"github.com/bft-labs/serlink/internal/record"
	"github.com/bft-labs/serlink/internal/relay"
	"github.com/bft-labs/serlink/internal/term"
)

// Session is the run-scoped aggregate: constructed once from configuration,
// torn down exactly once on exit.
type Session struct {
	cfg Config
	log zerolog.Logger
}

// New creates a Session from a validated Config.
func New(cfg Config) *Session {
	return &Session{cfg: cfg, log: Logger()}
}

// Run executes the session until the exit keystroke, a fatal error, or
// cancellation. Everything that can fail at startup fails before the
// terminal mode is touched, so an error return here never leaves the shell
// in raw mode. A non-nil error means the process should exit non-zero.
func (s *Session) Run(ctx context.Context) error {
	if s.cfg.Wait {
		if err := device.Await(ctx, s.cfg.Device, s.cfg.WaitTimeout); err != nil {
			return err
		}
	}

	port, err := device.Open(s.cfg.Device)
	if err != nil {
		return err
	}
	defer port.Close()
	s.log.Info().
		Str("device", port.Path()).
		Int("baud", device.BaudRate).
		Msg("connected")

	var rec *record.Recorder
	if !s.cfg.NoLog {
		rec, err = record.New(s.cfg.LogDir)
		if err != nil {
			s.log.Warn().Err(err).Msg("couldn't open logfile, proceeding without")
			rec = nil
		} else {
			s.log.Info().Str("logfile", rec.Path()).Msg("recording session")
		}
	}

	restorer, err := term.EnterRaw(term.Stdin())
	if err != nil {
		if rec != nil {
			rec.Finalize()
		}
		return err
	}
	// The deferred restore covers a relay panic; the sync.Once inside makes
	// the explicit call below the effective one on normal paths.
	defer restorer.Restore()

	var sink io.Writer
	if rec != nil {
		sink = rec
	}
	rel := relay.New(relay.Options{
		Echo:         s.cfg.Echo,
		Translate:    s.cfg.Translate,
		DrainTimeout: s.cfg.DrainTimeout,
	}, os.Stdin, os.Stdout, port, sink, s.log)

	reason, relayErr := rel.Run(ctx)

	if rerr := restorer.Restore(); rerr != nil {
		s.log.Warn().Err(rerr).Msg("couldn't restore terminal mode")
	}
	fmt.Fprintln(os.Stdout)
	s.log.Info().Str("reason", reason.String()).Msg("session ended")

	if rec != nil {
		if ferr := rec.Finalize(); ferr != nil {
			s.log.Warn().Err(ferr).Msg("couldn't finalize logfile")
		} else if shouldCompress(reason, relayErr) {
			if cerr := rec.Compress(context.Background(), s.cfg.Compressor); cerr != nil {
				s.log.Warn().Err(cerr).Msg("compression failed, plain logfile kept")
			} else {
				s.log.Info().Str("logfile", rec.Path()).Msg("logfile compressed")
			}
		} else {
			s.log.Info().Str("logfile", rec.Path()).Msg("logfile kept uncompressed")
		}
	}

	return relayErr
}

// shouldCompress reports whether the session ended cleanly enough to hand
// the logfile to the compressor. Only the exit keystroke qualifies; faults,
// device EOF, and signal cancellation all leave the plain file behind.
func shouldCompress(reason relay.Reason, relayErr error) bool {
	return relayErr == nil && reason == relay.ReasonUserRequest
}
