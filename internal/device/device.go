// Package device opens and configures the serial line.
//
// The line settings are fixed for the lifetime of a session: 115200 baud,
// 8 data bits, no parity, one stop bit. Reads carry a short timeout so a
// caller polling the port stays responsive to cancellation; a read that
// returns zero bytes with a nil error is a timeout cycle, not EOF.
package device

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"
)

// Fixed line settings. Not exposed as configuration in this version.
const (
	BaudRate = 115200
	DataBits = 8
)

// DefaultReadTimeout bounds a single blocking read on the port.
const DefaultReadTimeout = 200 * time.Millisecond

// Sentinel errors for startup failures. Both are detected before the
// controlling terminal is touched, so callers can report and exit without
// any restore work.
var (
	// ErrUnavailable indicates the device path is missing, is not a
	// character device, or cannot be opened.
	ErrUnavailable = errors.New("serlink: device unavailable")

	// ErrConfig indicates the device rejected the fixed line settings.
	ErrConfig = errors.New("serlink: device configuration rejected")
)

// Port is an open serial device with the fixed line settings applied.
type Port struct {
	path string
	port serial.Port
}

// Open opens and configures the serial device at path.
// It returns ErrUnavailable if the path does not exist or cannot be opened,
// and ErrConfig if the fixed line settings cannot be applied.
func Open(path string) (*Port, error) {
	if err := checkNode(path); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, classify(path, err)
	}
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %s: set read timeout: %v", ErrConfig, path, err)
	}

	return &Port{path: path, port: port}, nil
}

// checkNode verifies the path names an existing character device so the
// common failure (wrong path, adapter not plugged in) produces a clear
// error instead of whatever the serial library reports.
func checkNode(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	if fi.Mode()&os.ModeCharDevice == 0 {
		return fmt.Errorf("%w: %s: not a character device", ErrUnavailable, path)
	}
	return nil
}

// classify maps serial library errors onto the package sentinels.
func classify(path string, err error) error {
	var perr *serial.PortError
	if errors.As(err, &perr) && isConfigCode(perr.Code()) {
		return fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
}

// isConfigCode reports whether a port error code means the device refused
// the line settings rather than being absent or busy.
func isConfigCode(code serial.PortErrorCode) bool {
	switch code {
	case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity, serial.InvalidStopBits:
		return true
	}
	return false
}

// Read reads available bytes from the device. A zero-byte result with a nil
// error means the read timeout elapsed with nothing to deliver.
func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write sends bytes to the device.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Path returns the device path the port was opened with.
func (p *Port) Path() string {
	return p.path
}

// Close releases the port so a later session can reopen it cleanly.
func (p *Port) Close() error {
	return p.port.Close()
}
