package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce collapses bursts of editor writes into one reload
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads Sources when its file changes on disk.
// The parent directory is watched so that atomic renames by editors are seen.
type Watcher struct {
	sources  *Sources
	debounce time.Duration
	onReload func()
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the sources file. onReload may be nil.
func NewWatcher(sources *Sources, debounce time.Duration, onReload func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	dir := filepath.Dir(sources.Path())
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &Watcher{
		sources:  sources,
		debounce: debounce,
		onReload: onReload,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.watcher.Close() }()

	target := filepath.Clean(w.sources.Path())
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			if err := w.sources.Reload(); err != nil {
				slog.Warn("Failed to reload config file", "path", target, "error", err)
				continue
			}
			slog.Info("Config file reloaded", "path", target, "roots", len(w.sources.Roots()))
			if w.onReload != nil {
				w.onReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}
