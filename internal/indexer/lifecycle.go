package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Lifecycle ensures the index exists and resets it on demand.
// The mapping is never diffed: an existing index is left as is, and mapping
// changes only take effect through ResetIndex.
type Lifecycle struct {
	engine   Engine
	manifest *Manifest
	now      func() time.Time
}

// NewLifecycle creates a lifecycle manager. manifest may be nil.
func NewLifecycle(engine Engine, manifest *Manifest) *Lifecycle {
	return &Lifecycle{
		engine:   engine,
		manifest: manifest,
		now:      time.Now,
	}
}

// EnsureIndex creates the index when it does not exist. It is idempotent.
func (l *Lifecycle) EnsureIndex(ctx context.Context) error {
	exists, err := l.engine.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	if exists {
		return nil
	}

	if err := l.engine.Create(ctx); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	slog.Info("Index created", "index", l.engine.Name())

	if l.manifest != nil {
		l.manifest.MarkCreated(l.now())
		l.saveManifest()
	}
	return nil
}

// ResetIndex deletes the index and recreates it. A missing index is not an
// error. Recreation is attempted even when the delete fails; both errors are
// reported.
func (l *Lifecycle) ResetIndex(ctx context.Context) (err error) {
	defer func() {
		if ensureErr := l.EnsureIndex(ctx); ensureErr != nil {
			err = errors.Join(err, ensureErr)
		}
		if err == nil && l.manifest != nil {
			l.manifest.MarkReset(l.now())
			l.saveManifest()
		}
	}()

	if delErr := l.engine.Delete(ctx); delErr != nil && !errors.Is(delErr, ErrIndexNotFound) {
		return fmt.Errorf("failed to delete index: %w", delErr)
	}
	slog.Info("Index deleted", "index", l.engine.Name())
	return nil
}

func (l *Lifecycle) saveManifest() {
	if err := l.manifest.Save(); err != nil {
		slog.Warn("Failed to save index manifest", "error", err)
	}
}
