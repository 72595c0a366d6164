// Package term switches the controlling terminal into raw mode and restores
// it afterwards. Restoration is idempotent so the happy path, the fatal-error
// path, and a signal handler can all call it without coordinating.
package term

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// ErrNotTerminal indicates stdin is not attached to a terminal, so there is
// no mode to switch. An interactive session cannot run without one.
var ErrNotTerminal = errors.New("serlink: stdin is not a terminal")

// Restorer holds the terminal state captured before raw mode was entered.
// Restore applies it exactly once no matter how many exit paths reach it.
type Restorer struct {
	once    sync.Once
	restore func() error
}

// EnterRaw puts the terminal on fd into raw mode and returns a Restorer for
// the previous state. In raw mode no echo, line buffering, or
// signal-generating control characters are active; every byte, including the
// session's exit keystroke, reaches the relay untouched.
func EnterRaw(fd int) (*Restorer, error) {
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	prev, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("serlink: enter raw mode: %w", err)
	}
	return &Restorer{
		restore: func() error { return term.Restore(fd, prev) },
	}, nil
}

// Restore reapplies the captured terminal state. Calls after the first are
// no-ops. The first call's error is reported; it cannot be retried anyway.
func (r *Restorer) Restore() error {
	var err error
	r.once.Do(func() {
		err = r.restore()
	})
	return err
}

// Stdin returns the file descriptor EnterRaw should normally be given.
func Stdin() int {
	return int(os.Stdin.Fd())
}
