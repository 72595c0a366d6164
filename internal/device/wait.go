package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWaitTimeout bounds how long Await blocks for a device node to
// appear before giving up.
const DefaultWaitTimeout = 30 * time.Second

// Await blocks until the device node at path exists, the timeout elapses, or
// ctx is cancelled. It watches the parent directory for creation events so a
// USB adapter plugged in after startup is picked up without polling.
//
// Await returns nil as soon as the node exists; it does not open the device.
func Await(ctx context.Context, path string, timeout time.Duration) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %s: watch: %v", ErrUnavailable, path, err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("%w: %s: watch %s: %v", ErrUnavailable, path, dir, err)
	}

	// The node may have appeared between the Stat and the Add.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("%w: %s: watcher closed", ErrUnavailable, path)
			}
			if ev.Name == path && ev.Op&fsnotify.Create != 0 {
				return nil
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("%w: %s: watcher closed", ErrUnavailable, path)
			}
			return fmt.Errorf("%w: %s: watch: %v", ErrUnavailable, path, werr)
		case <-deadline.C:
			return fmt.Errorf("%w: %s: not present after %s", ErrUnavailable, path, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
