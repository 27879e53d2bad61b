package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sha1n/seekql/internal/config"
	"github.com/sha1n/seekql/internal/indexer"
	"github.com/sha1n/seekql/internal/jobs"
	"github.com/sha1n/seekql/internal/search"
)

// Services holds the process-wide components created at startup
type Services struct {
	Settings  *config.Settings
	Sources   *config.Sources
	Engine    *indexer.BleveEngine
	Manifest  *indexer.Manifest
	Lifecycle *indexer.Lifecycle
	Jobs      *jobs.Orchestrator
	Search    *search.Service

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewServices opens the index under the configured data directory and wires
// the job orchestrator and the search service around it. The index is
// created when missing. Close must be called to release the data directory.
func NewServices(ctx context.Context, settings *config.Settings) (*Services, error) {
	sources, err := config.LoadSources(settings.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	engine, err := indexer.OpenBleveEngine(settings.Index.DataDir, settings.Index.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	manifestPath := indexer.ManifestPath(settings.Index.DataDir, settings.Index.Name)
	manifest, err := indexer.LoadManifest(manifestPath, settings.Index.Name)
	if err != nil {
		slog.Warn("Failed to load index manifest, starting fresh", "path", manifestPath, "error", err)
		manifest = indexer.NewManifest(manifestPath, settings.Index.Name)
	}

	lifecycle := indexer.NewLifecycle(engine, manifest)
	if err := lifecycle.EnsureIndex(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}

	orch := jobs.New(jobs.Options{
		Sources:   sources,
		Lifecycle: lifecycle,
		Loader:    indexer.NewLoader(engine, settings.Index.BulkChunkSize, settings.Index.RequestTimeout),
		Manifest:  manifest,
	})

	searchSvc, err := search.NewService(engine, orch, lifecycle, search.Settings{
		CacheSize:    settings.Search.CacheSize,
		DefaultLimit: settings.Search.DefaultLimit,
		MaxLimit:     settings.Search.MaxLimit,
	})
	if err != nil {
		_ = orch.Close()
		_ = engine.Close()
		return nil, err
	}

	s := &Services{
		Settings:  settings,
		Sources:   sources,
		Engine:    engine,
		Manifest:  manifest,
		Lifecycle: lifecycle,
		Jobs:      orch,
		Search:    searchSvc,
		done:      make(chan struct{}),
	}
	s.purgeOnTransition()

	return s, nil
}

// purgeOnTransition drops cached search results whenever a run resets the
// index or finishes. It stops when the orchestrator closes the subscription.
func (s *Services) purgeOnTransition() {
	updates, _ := s.Jobs.Subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for st := range updates {
			if st.Phase == jobs.PhaseReset || st.Phase.Terminal() {
				s.Search.Purge()
			}
		}
	}()
}

// WatchSources reloads the sources file when it changes on disk, until ctx
// is cancelled or Close is called. Failure to watch is logged and ignored.
func (s *Services) WatchSources(ctx context.Context) {
	w, err := config.NewWatcher(s.Sources, config.DefaultWatchDebounce, nil)
	if err != nil {
		slog.Warn("Failed to watch sources file", "path", s.Sources.Path(), "error", err)
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		w.Run(watchCtx)
	}()
	go func() {
		defer s.wg.Done()
		defer cancel()
		select {
		case <-s.done:
		case <-watchCtx.Done():
		}
	}()
}

// Close waits for an active run to finish and releases the index
func (s *Services) Close() error {
	var err error
	s.once.Do(func() {
		errs := []error{s.Jobs.Close()}
		close(s.done)
		s.wg.Wait()
		errs = append(errs, s.Engine.Close())
		err = errors.Join(errs...)
	})
	return err
}
