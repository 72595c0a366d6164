package record

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// DefaultCompressor is the external tool handed the finished logfile.
// xz replaces the file with a .xz artifact by its own semantics.
const DefaultCompressor = "xz"

// ErrCompress indicates the external compressor was missing or exited
// non-zero. The uncompressed logfile stays behind as the fallback artifact.
var ErrCompress = errors.New("serlink: logfile compression failed")

// Compress runs the named compressor on the finalized logfile. It must only
// be called after Finalize, and only on a clean session exit; a logfile cut
// short by a fault is left alone for inspection.
func (r *Recorder) Compress(ctx context.Context, compressor string) error {
	if !r.finalized {
		return fmt.Errorf("%w: %s: not finalized", ErrCompress, r.path)
	}
	if compressor == "" {
		compressor = DefaultCompressor
	}
	if _, err := exec.LookPath(compressor); err != nil {
		return fmt.Errorf("%w: %v", ErrCompress, err)
	}
	if out, err := exec.CommandContext(ctx, compressor, r.path).CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s %s: %v: %s", ErrCompress, compressor, r.path, err, out)
	}
	return nil
}
