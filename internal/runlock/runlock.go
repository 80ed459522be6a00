// Package runlock keeps two pipeline runs from writing the same folder.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the lock file created inside the guarded folder.
const FileName = ".jobhunter.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("another run holds the lock")

// Lock is an exclusive advisory file lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock for dir, retrying every retryDelay until ctx ends.
// A zero retryDelay tries exactly once.
func Acquire(ctx context.Context, dir string, retryDelay time.Duration) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(dir, FileName))

	var (
		ok  bool
		err error
	)
	if retryDelay <= 0 {
		ok, err = fl.TryLock()
	} else {
		ok, err = fl.TryLockContext(ctx, retryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire %s: %w", fl.Path(), ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release drops the lock. Calling it on a nil Lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release %s: %w", l.fl.Path(), err)
	}
	return nil
}
