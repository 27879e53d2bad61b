package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrIndexLocked indicates the index data directory is held by another process
var ErrIndexLocked = errors.New("index is locked by another process")

// DirLock provides an exclusive, non-blocking lock on the index data directory.
// It is safe for coordination between multiple processes and is released by
// the OS when the holder exits or crashes.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock backed by the file at path
func NewDirLock(path string) *DirLock {
	return &DirLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire takes the lock without blocking.
// Returns ErrIndexLocked when the lock is held elsewhere.
func (l *DirLock) Acquire() error {
	if l.locked {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrIndexLocked, l.path)
	}

	l.locked = true
	return nil
}

// Release releases the lock.
// It is safe to call Release on an unlocked DirLock (no-op).
func (l *DirLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
