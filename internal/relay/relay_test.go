package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptReader delivers pre-queued chunks and blocks when none are pending.
// Closing the channel yields io.EOF.
type scriptReader struct {
	chunks chan []byte
}

func newScriptReader() *scriptReader {
	return &scriptReader{chunks: make(chan []byte, 16)}
}

func (s *scriptReader) Read(p []byte) (int, error) {
	b, ok := <-s.chunks
	if !ok {
		return 0, io.EOF
	}
	return copy(p, b), nil
}

// fakeDevice is an in-memory serial endpoint. Reads block on a channel;
// writes accumulate under a lock.
type fakeDevice struct {
	reads    chan []byte
	readErr  error // returned instead of io.EOF once reads is closed
	writeErr error

	mu    sync.Mutex
	wrote bytes.Buffer
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{reads: make(chan []byte, 16)}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	b, ok := <-d.reads
	if !ok {
		if d.readErr != nil {
			return 0, d.readErr
		}
		return 0, io.EOF
	}
	return copy(p, b), nil
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrote.Write(p)
	return len(p), nil
}

func (d *fakeDevice) written() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.wrote.Bytes()...)
}

// syncBuffer is a mutex-guarded byte buffer safe to poll mid-run.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// failWriter errors on every write and counts the attempts.
type failWriter struct {
	mu    sync.Mutex
	calls int
}

func (w *failWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return 0, errors.New("disk full")
}

func (w *failWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testOptions(opts Options) Options {
	opts.DrainTimeout = 50 * time.Millisecond
	return opts
}

func TestRun_ExitKeystroke(t *testing.T) {
	termIn := newScriptReader()
	termOut := &syncBuffer{}
	dev := newFakeDevice()

	termIn.chunks <- []byte("hello\r")
	termIn.chunks <- []byte{DefaultExitKey}

	r := New(testOptions(Options{}), termIn, termOut, dev, nil, zerolog.Nop())
	reason, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != ReasonUserRequest {
		t.Errorf("reason = %v, want ReasonUserRequest", reason)
	}
	if got := dev.written(); !bytes.Equal(got, []byte("hello\r")) {
		t.Errorf("device received %q, want %q", got, "hello\r")
	}
	if got := termOut.bytes(); len(got) != 0 {
		t.Errorf("terminal displayed %q with echo off, want nothing", got)
	}
	if r.State() != StateTerminated {
		t.Errorf("state = %v, want StateTerminated", r.State())
	}
}

func TestRun_ExitKeyMidChunk(t *testing.T) {
	termIn := newScriptReader()
	dev := newFakeDevice()

	termIn.chunks <- append([]byte("ab"), DefaultExitKey, 'z')

	r := New(testOptions(Options{}), termIn, &syncBuffer{}, dev, nil, zerolog.Nop())
	reason, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != ReasonUserRequest {
		t.Errorf("reason = %v, want ReasonUserRequest", reason)
	}
	// Bytes ahead of the key are forwarded, the key and the rest are not.
	if got := dev.written(); !bytes.Equal(got, []byte("ab")) {
		t.Errorf("device received %q, want %q", got, "ab")
	}
}

// Echo on, translation on, user types "hello\r". The
// terminal shows the verbatim keystrokes, the device gets CRLF, and the
// keyboard never reaches the logfile.
func TestRun_EchoAndTranslate(t *testing.T) {
	termIn := newScriptReader()
	termOut := &syncBuffer{}
	dev := newFakeDevice()
	sink := &syncBuffer{}

	termIn.chunks <- []byte("hello\r")
	termIn.chunks <- []byte{DefaultExitKey}

	r := New(testOptions(Options{Echo: true, Translate: true}), termIn, termOut, dev, sink, zerolog.Nop())
	reason, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != ReasonUserRequest {
		t.Errorf("reason = %v, want ReasonUserRequest", reason)
	}
	if got := dev.written(); !bytes.Equal(got, []byte("hello\r\n")) {
		t.Errorf("device received %q, want %q", got, "hello\r\n")
	}
	if got := termOut.bytes(); !bytes.Equal(got, []byte("hello\r")) {
		t.Errorf("terminal displayed %q, want %q", got, "hello\r")
	}
	if got := sink.bytes(); len(got) != 0 {
		t.Errorf("logfile received keyboard bytes %q, want nothing", got)
	}
}

func TestRun_DeviceOutputLoggedAndDisplayed(t *testing.T) {
	termIn := newScriptReader()
	termOut := &syncBuffer{}
	dev := newFakeDevice()
	sink := &syncBuffer{}

	r := New(testOptions(Options{Translate: true}), termIn, termOut, dev, sink, zerolog.Nop())

	done := make(chan struct{})
	var reason Reason
	var runErr error
	go func() {
		defer close(done)
		reason, runErr = r.Run(context.Background())
	}()

	dev.reads <- []byte("boot ")
	dev.reads <- []byte("ok\n")
	dev.reads <- []byte("ready\r\n")
	waitFor(t, "device output on terminal", func() bool {
		return bytes.Equal(termOut.bytes(), []byte("boot ok\r\nready\r\n"))
	})

	termIn.chunks <- []byte{DefaultExitKey}
	<-done

	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if reason != ReasonUserRequest {
		t.Errorf("reason = %v, want ReasonUserRequest", reason)
	}
	// The sink holds the raw stream: per-source order kept, display
	// translation not applied.
	if got := sink.bytes(); !bytes.Equal(got, []byte("boot ok\nready\r\n")) {
		t.Errorf("logfile = %q, want %q", got, "boot ok\nready\r\n")
	}
}

func TestRun_DeviceEOF(t *testing.T) {
	termIn := newScriptReader()
	dev := newFakeDevice()
	close(dev.reads)

	r := New(testOptions(Options{}), termIn, &syncBuffer{}, dev, nil, zerolog.Nop())
	reason, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != ReasonDeviceEOF {
		t.Errorf("reason = %v, want ReasonDeviceEOF", reason)
	}
	if r.State() != StateTerminated {
		t.Errorf("state = %v, want StateTerminated", r.State())
	}
}

func TestRun_DeviceReadError(t *testing.T) {
	termIn := newScriptReader()
	dev := newFakeDevice()
	dev.readErr = errors.New("device gone")
	close(dev.reads)

	r := New(testOptions(Options{}), termIn, &syncBuffer{}, dev, nil, zerolog.Nop())
	reason, err := r.Run(context.Background())
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Run() error = %v, want ErrIO", err)
	}
	if reason != ReasonFault {
		t.Errorf("reason = %v, want ReasonFault", reason)
	}
}

func TestRun_DeviceWriteError(t *testing.T) {
	termIn := newScriptReader()
	dev := newFakeDevice()
	dev.writeErr = errors.New("unplugged")

	termIn.chunks <- []byte("x")

	r := New(testOptions(Options{}), termIn, &syncBuffer{}, dev, nil, zerolog.Nop())
	reason, err := r.Run(context.Background())
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Run() error = %v, want ErrIO", err)
	}
	if reason != ReasonFault {
		t.Errorf("reason = %v, want ReasonFault", reason)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	termIn := newScriptReader()
	dev := newFakeDevice()

	ctx, cancel := context.WithCancel(context.Background())
	r := New(testOptions(Options{}), termIn, &syncBuffer{}, dev, nil, zerolog.Nop())

	done := make(chan struct{})
	var reason Reason
	var runErr error
	go func() {
		defer close(done)
		reason, runErr = r.Run(ctx)
	}()

	waitFor(t, "relay running", func() bool { return r.State() == StateRunning })
	cancel()
	<-done

	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if reason != ReasonCanceled {
		t.Errorf("reason = %v, want ReasonCanceled", reason)
	}
}

func TestRun_SinkFailureIsNotFatal(t *testing.T) {
	termIn := newScriptReader()
	termOut := &syncBuffer{}
	dev := newFakeDevice()
	sink := &failWriter{}

	r := New(testOptions(Options{}), termIn, termOut, dev, sink, zerolog.Nop())

	done := make(chan struct{})
	var reason Reason
	var runErr error
	go func() {
		defer close(done)
		reason, runErr = r.Run(context.Background())
	}()

	dev.reads <- []byte("first")
	dev.reads <- []byte("second")
	waitFor(t, "device output on terminal", func() bool {
		return bytes.Equal(termOut.bytes(), []byte("firstsecond"))
	})

	termIn.chunks <- []byte{DefaultExitKey}
	<-done

	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if reason != ReasonUserRequest {
		t.Errorf("reason = %v, want ReasonUserRequest", reason)
	}
	// Recording is dropped after the first failed write.
	if n := sink.callCount(); n != 1 {
		t.Errorf("sink write attempts = %d, want 1", n)
	}
}

func TestSplitExit(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		wantData []byte
		wantQuit bool
	}{
		{name: "no key", in: []byte("abc"), wantData: []byte("abc"), wantQuit: false},
		{name: "only key", in: []byte{DefaultExitKey}, wantData: []byte{}, wantQuit: true},
		{name: "key after data", in: []byte{'a', 'b', DefaultExitKey}, wantData: []byte("ab"), wantQuit: true},
		{name: "key truncates rest", in: []byte{'a', DefaultExitKey, 'b'}, wantData: []byte("a"), wantQuit: true},
		{name: "empty", in: nil, wantData: nil, wantQuit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, quit := splitExit(tt.in, DefaultExitKey)
			if !bytes.Equal(data, tt.wantData) || quit != tt.wantQuit {
				t.Errorf("splitExit(%q) = (%q, %v), want (%q, %v)",
					tt.in, data, quit, tt.wantData, tt.wantQuit)
			}
		})
	}
}
