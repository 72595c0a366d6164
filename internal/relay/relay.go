// Package relay couples raw terminal input, the serial device, and the
// session logfile into one forwarding loop.
//
// Each input source is owned by a dedicated reader pump feeding a channel;
// a single loop multiplexes the two channels and performs every write, so
// no buffer is ever touched from two goroutines. Bytes from one source are
// forwarded in arrival order; interleaving between the sources is whatever
// the channel select yields.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultExitKey ends the session from inside raw mode: Ctrl-O.
const DefaultExitKey = 0x0f

const (
	// DefaultBufferSize is the per-read chunk size for both pumps.
	DefaultBufferSize = 1024

	// DefaultDrainTimeout bounds the wait for reader pumps to wind down
	// once the session is draining.
	DefaultDrainTimeout = time.Second
)

// ErrIO marks a fatal read or write failure on the device or the terminal.
// There is no reconnection; the session drains and ends.
var ErrIO = errors.New("serlink: i/o failure")

// Reason explains why a session ended.
type Reason int

const (
	// ReasonFault means a fatal I/O error ended the session.
	ReasonFault Reason = iota
	// ReasonUserRequest means the exit keystroke was seen. This is the only
	// clean exit; it alone permits logfile compression.
	ReasonUserRequest
	// ReasonDeviceEOF means the device closed the stream (port gone).
	ReasonDeviceEOF
	// ReasonCanceled means the run context was cancelled, typically by a
	// process signal.
	ReasonCanceled
)

// String returns a human-readable representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonFault:
		return "fatal error"
	case ReasonUserRequest:
		return "user request"
	case ReasonDeviceEOF:
		return "device EOF"
	case ReasonCanceled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Options tunes a relay session. The zero value of each field selects the
// package default; Echo and Translate default to off.
type Options struct {
	// Echo redisplays typed bytes on the terminal.
	Echo bool

	// Translate expands CR from the keyboard to CRLF for the device, and
	// bare LF from the device to CRLF for the display.
	Translate bool

	// ExitKey is the in-band keystroke that cleanly ends the session.
	ExitKey byte

	// BufferSize is the read chunk size for both pumps.
	BufferSize int

	// DrainTimeout bounds the Draining state.
	DrainTimeout time.Duration
}

// Relay forwards bytes between the terminal and the device, mirroring
// device output into an optional sink.
type Relay struct {
	opts    Options
	termIn  io.Reader
	termOut io.Writer
	dev     io.ReadWriter
	sink    io.Writer
	log     zerolog.Logger

	exp lineExpander
	wg  sync.WaitGroup

	mu    sync.Mutex
	state State
}

// New builds a relay over the given endpoints. sink receives the verbatim
// device byte stream and may be nil to disable recording; a failing sink is
// dropped mid-session rather than ending the relay.
func New(opts Options, termIn io.Reader, termOut io.Writer, dev io.ReadWriter, sink io.Writer, log zerolog.Logger) *Relay {
	if opts.ExitKey == 0 {
		opts.ExitKey = DefaultExitKey
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	return &Relay{
		opts:    opts,
		termIn:  termIn,
		termOut: termOut,
		dev:     dev,
		sink:    sink,
		log:     log,
		state:   StateRunning,
	}
}

// chunk is one pump delivery: bytes read, or the error that ended the pump.
type chunk struct {
	data []byte
	err  error
}

// Run relays until the exit keystroke, a fatal I/O error, device EOF, or
// context cancellation, then drains and reports how the session ended. A
// non-nil error is always ErrIO-class and implies ReasonFault.
func (r *Relay) Run(ctx context.Context) (Reason, error) {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	termCh := make(chan chunk)
	devCh := make(chan chunk)
	r.wg.Add(2)
	go r.pump(pumpCtx, r.termIn, termCh)
	go r.pump(pumpCtx, r.dev, devCh)

	reason := ReasonFault
	var fault error

loop:
	for {
		select {
		case <-ctx.Done():
			reason = ReasonCanceled
			break loop

		case c := <-termCh:
			if c.err != nil {
				fault = fmt.Errorf("%w: terminal read: %v", ErrIO, c.err)
				break loop
			}
			data, quit := splitExit(c.data, r.opts.ExitKey)
			if len(data) > 0 {
				if err := r.forwardToDevice(data); err != nil {
					fault = err
					break loop
				}
			}
			if quit {
				reason = ReasonUserRequest
				break loop
			}

		case c := <-devCh:
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					reason = ReasonDeviceEOF
					break loop
				}
				fault = fmt.Errorf("%w: device read: %v", ErrIO, c.err)
				break loop
			}
			if err := r.forwardToTerminal(c.data); err != nil {
				fault = err
				break loop
			}
		}
	}

	r.transition(StateDraining, reasonLabel(reason, fault))
	cancel()
	if err := r.waitPumps(r.opts.DrainTimeout); err != nil {
		r.log.Debug().Dur("timeout", r.opts.DrainTimeout).Msg("drain timeout, pumps abandoned")
	}
	r.transition(StateTerminated, "drain complete")

	return reason, fault
}

// forwardToDevice handles one keyboard chunk: optional echo, optional CR
// expansion, then the device write. The echo shows the verbatim typed
// bytes; translation applies only to what the device receives.
func (r *Relay) forwardToDevice(data []byte) error {
	if r.opts.Echo {
		if _, err := r.termOut.Write(data); err != nil {
			return fmt.Errorf("%w: terminal write: %v", ErrIO, err)
		}
	}
	out := data
	if r.opts.Translate {
		out = expandCR(data)
	}
	if _, err := r.dev.Write(out); err != nil {
		return fmt.Errorf("%w: device write: %v", ErrIO, err)
	}
	return nil
}

// forwardToTerminal handles one device chunk: raw bytes to the sink first,
// then optional LF expansion for display, then the terminal write. The sink
// always sees the stream exactly as it arrived.
func (r *Relay) forwardToTerminal(data []byte) error {
	if r.sink != nil {
		if _, err := r.sink.Write(data); err != nil {
			r.log.Warn().Err(err).Msg("logfile write failed, recording disabled")
			r.sink = nil
		}
	}
	out := data
	if r.opts.Translate {
		out = r.exp.expand(data)
	}
	if _, err := r.termOut.Write(out); err != nil {
		return fmt.Errorf("%w: terminal write: %v", ErrIO, err)
	}
	return nil
}

// pump reads src until error or cancellation, delivering each chunk on ch.
// A zero-byte read with nil error is a poll cycle and is not delivered.
func (r *Relay) pump(ctx context.Context, src io.Reader, ch chan<- chunk) {
	defer r.wg.Done()
	buf := make([]byte, r.opts.BufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := src.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case ch <- chunk{data: data}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case ch <- chunk{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// waitPumps blocks until both pumps return or the timeout elapses. A pump
// parked in a blocking read with no data coming cannot be interrupted; the
// bounded wait keeps teardown prompt anyway.
func (r *Relay) waitPumps(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("drain timeout")
	}
}

// splitExit returns the bytes preceding the first occurrence of the exit
// key, and whether the key was present. Typed bytes ahead of the key are
// still forwarded; the key and anything after it are discarded.
func splitExit(data []byte, key byte) ([]byte, bool) {
	for i, c := range data {
		if c == key {
			return data[:i], true
		}
	}
	return data, false
}

func reasonLabel(reason Reason, fault error) string {
	if fault != nil {
		return fault.Error()
	}
	return reason.String()
}
