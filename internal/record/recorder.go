// Package record persists the byte stream received from the device and hands
// the finished logfile to an external compressor on clean exit.
package record

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// flushThreshold is the buffered-writer size. A crash loses at most this
// much of the tail; everything earlier has reached the kernel.
const flushThreshold = 4096

// ErrLogWrite indicates the logfile could not be created or written. The
// session carries on without recording; losing the transcript is not worth
// aborting an interactive connection.
var ErrLogWrite = errors.New("serlink: logfile write failed")

// Recorder is an append-only sink for device-received bytes. The keyboard
// side of the session never reaches it.
type Recorder struct {
	path      string
	file      *os.File
	buf       *bufio.Writer
	finalized bool
}

// now is stubbed in tests to pin the generated filename.
var now = time.Now

// New creates a timestamped logfile under dir and returns a Recorder bound
// to it. The filename is internal policy, not caller input.
func New(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLogWrite, dir, err)
	}
	path := filepath.Join(dir, now().Format("serlink-20060102-150405.log"))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLogWrite, path, err)
	}
	return &Recorder{
		path: path,
		file: file,
		buf:  bufio.NewWriterSize(file, flushThreshold),
	}, nil
}

// Append records bytes in arrival order.
func (r *Recorder) Append(b []byte) error {
	if r.finalized {
		return fmt.Errorf("%w: %s: already finalized", ErrLogWrite, r.path)
	}
	if _, err := r.buf.Write(b); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLogWrite, r.path, err)
	}
	return nil
}

// Write makes Recorder an io.Writer so the relay can treat it as a plain
// byte sink.
func (r *Recorder) Write(b []byte) (int, error) {
	if err := r.Append(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Finalize flushes and closes the logfile. It must run before Compress so
// no handle is open while the external tool rewrites the file. Calls after
// the first are no-ops.
func (r *Recorder) Finalize() error {
	if r.finalized {
		return nil
	}
	r.finalized = true

	ferr := r.buf.Flush()
	cerr := r.file.Close()
	if ferr != nil {
		return fmt.Errorf("%w: %s: %v", ErrLogWrite, r.path, ferr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: %s: %v", ErrLogWrite, r.path, cerr)
	}
	return nil
}

// Path returns the logfile path.
func (r *Recorder) Path() string {
	return r.path
}
