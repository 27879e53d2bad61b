package indexer

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirLock_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "sql_files.lock")
	lock := NewDirLock(path)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	// re-acquiring an owned lock is a no-op
	if err := lock.Acquire(); err != nil {
		t.Errorf("Second Acquire failed: %v", err)
	}

	other := NewDirLock(path)
	err := other.Acquire()
	if !errors.Is(err, ErrIndexLocked) {
		t.Fatalf("Expected ErrIndexLocked while held, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("Expected the lock path in %q", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := other.Acquire(); err != nil {
		t.Errorf("Acquire after Release failed: %v", err)
	}
	_ = other.Release()
}

func TestDirLock_ReleaseUnlocked(t *testing.T) {
	lock := NewDirLock(filepath.Join(t.TempDir(), "x.lock"))
	if err := lock.Release(); err != nil {
		t.Errorf("Release of unlocked lock should be a no-op, got %v", err)
	}
}

func TestDirLock_Contention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sql_files.lock")
	first := NewDirLock(path)
	second := NewDirLock(path)

	if err := first.Acquire(); err != nil {
		t.Fatalf("First Acquire failed: %v", err)
	}

	err := second.Acquire()
	if !errors.Is(err, ErrIndexLocked) {
		t.Fatalf("Expected ErrIndexLocked, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := second.Acquire(); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
	_ = second.Release()
}
