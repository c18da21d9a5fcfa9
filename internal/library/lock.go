package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// Lock takes the advisory lock at path, waiting until ctx is done. The
// returned function releases it.
func Lock(ctx context.Context, path string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("library: ensure lock dir: %w", err)
	}
	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("library: lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("library: %s is locked by another cmec-driver process", path)
	}
	return fl.Unlock, nil
}
