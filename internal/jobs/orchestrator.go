package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sha1n/seekql/internal/collector"
	"github.com/sha1n/seekql/internal/config"
	"github.com/sha1n/seekql/internal/domain"
	"github.com/sha1n/seekql/internal/indexer"
)

// NoRootsNote is reported when a run has nothing to collect
const NoRootsNote = "No roots provided and the config file has no sql_source_paths."

const (
	eventBuffer      = 16
	subscriberBuffer = 32
)

var (
	// ErrAlreadyIndexing is returned when a run is already in progress
	ErrAlreadyIndexing = errors.New("indexing already in progress")

	// ErrResetFailed is returned when the index could not be reset before a run
	ErrResetFailed = errors.New("failed to reset index")

	// ErrClosed is returned by Start after Close
	ErrClosed = errors.New("orchestrator is closed")
)

// RootsProvider supplies the configured collection settings
type RootsProvider interface {
	Roots() []string
	Extensions() []string
	ExcludeDirs() []string
	MaxBytes() int64
}

// Resetter drops and recreates the index
type Resetter interface {
	ResetIndex(ctx context.Context) error
}

// DocumentLoader upserts collected documents
type DocumentLoader interface {
	IndexDocuments(ctx context.Context, docs []domain.Document) indexer.LoadResult
}

// CollectFunc gathers documents from the filesystem
type CollectFunc func(ctx context.Context, opts collector.Options) (collector.Result, error)

// Options configures an Orchestrator
type Options struct {
	Sources   RootsProvider
	Lifecycle Resetter
	Loader    DocumentLoader
	// Collect defaults to collector.Collect
	Collect CollectFunc
	// Manifest, when set, records the summary of every finished run
	Manifest *indexer.Manifest
}

// Orchestrator owns the job record. At most one run is active at a time.
// The worker publishes Events on a channel; a single applier goroutine
// applies them to the record and fans snapshots out to subscribers.
type Orchestrator struct {
	sources   RootsProvider
	lifecycle Resetter
	loader    DocumentLoader
	collect   CollectFunc
	manifest  *indexer.Manifest
	now       func() time.Time
	newRunID  func() string

	mu      sync.Mutex
	status  Status
	runDone chan struct{}
	subs    map[int]chan Status
	nextSub int
	closed  bool

	events      chan Event
	applierDone chan struct{}
	workers     sync.WaitGroup
	closeOnce   sync.Once
}

// New creates an orchestrator and starts its event applier.
// Close must be called to release it.
func New(opts Options) *Orchestrator {
	collect := opts.Collect
	if collect == nil {
		collect = collector.Collect
	}
	o := &Orchestrator{
		sources:     opts.Sources,
		lifecycle:   opts.Lifecycle,
		loader:      opts.Loader,
		collect:     collect,
		manifest:    opts.Manifest,
		now:         time.Now,
		newRunID:    uuid.NewString,
		status:      Status{Phase: PhaseIdle},
		subs:        make(map[int]chan Status),
		events:      make(chan Event, eventBuffer),
		applierDone: make(chan struct{}),
	}
	go o.applyEvents()
	return o
}

// Status returns a snapshot of the job record
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.clone()
}

// Indexing reports whether a run is in progress
func (o *Orchestrator) Indexing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.Indexing
}

// Start resets the index and schedules a collect+load run.
// Explicit roots override the configured ones. The reset happens before
// Start returns; the run itself is asynchronous.
func (o *Orchestrator) Start(ctx context.Context, roots []string) (StartResult, error) {
	runID, startedAt, done, err := o.claim()
	if err != nil {
		return StartResult{}, err
	}

	if err := o.lifecycle.ResetIndex(ctx); err != nil {
		slog.Error("Index reset failed", "run_id", runID, "error", err)
		o.mu.Lock()
		now := o.now()
		o.status.Phase = PhaseError
		o.status.LastError = err.Error()
		o.status.FinishedAt = &now
		o.status.Indexing = false
		close(done)
		o.publishLocked()
		o.mu.Unlock()
		o.workers.Done()
		return StartResult{}, fmt.Errorf("%w: %w", ErrResetFailed, err)
	}

	o.mu.Lock()
	o.status = Status{
		RunID:     runID,
		Phase:     PhaseCollecting,
		Indexing:  true,
		StartedAt: &startedAt,
	}
	o.publishLocked()
	o.mu.Unlock()

	slog.Info("Indexing job started", "run_id", runID, "explicit_roots", len(roots))
	go o.run(context.WithoutCancel(ctx), runID, roots)

	return StartResult{Started: true, Reset: true, RunID: runID}, nil
}

// claim takes the single run slot and starts a fresh status for the new
// attempt. The busy check and the claim happen in one critical section.
func (o *Orchestrator) claim() (string, time.Time, chan struct{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", time.Time{}, nil, ErrClosed
	}
	if o.status.Indexing {
		return "", time.Time{}, nil, ErrAlreadyIndexing
	}
	runID := o.newRunID()
	startedAt := o.now()
	o.status = Status{
		RunID:     runID,
		Phase:     PhaseReset,
		Indexing:  true,
		StartedAt: &startedAt,
	}
	o.runDone = make(chan struct{})
	o.workers.Add(1)
	o.publishLocked()
	return runID, startedAt, o.runDone, nil
}

// Wait blocks until the current run, if any, has finished
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.runDone
	indexing := o.status.Indexing
	o.mu.Unlock()

	if !indexing || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel of status snapshots, one per applied
// transition, and a function that cancels the subscription. Slow
// subscribers miss snapshots rather than block the orchestrator.
func (o *Orchestrator) Subscribe() (<-chan Status, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan Status, subscriberBuffer)
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(sub)
			}
		})
	}
}

// Close rejects new runs, waits for the active one to finish and stops the
// applier. Subscriber channels are closed.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()

		o.workers.Wait()
		close(o.events)
		<-o.applierDone

		o.mu.Lock()
		for id, sub := range o.subs {
			delete(o.subs, id)
			close(sub)
		}
		o.mu.Unlock()
	})
	return nil
}

func (o *Orchestrator) run(ctx context.Context, runID string, explicit []string) {
	defer o.workers.Done()

	res, err := o.execute(ctx, runID, explicit)

	ev := Event{RunID: runID, At: o.now()}
	if err != nil {
		ev.Phase = PhaseError
		ev.Err = err.Error()
	} else {
		ev.Phase = PhaseDone
		ev.Result = &res
	}
	o.events <- ev
}

// execute runs collect then load, converting a panic into an error that
// carries the stack.
func (o *Orchestrator) execute(ctx context.Context, runID string, explicit []string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	roots := o.resolveRoots(explicit)
	if len(roots) == 0 {
		return Result{ErrorItems: []string{}, Note: NoRootsNote}, nil
	}

	o.emit(runID, PhaseCollecting)
	collected, err := o.collect(ctx, o.collectOptions(roots))
	if err != nil {
		return Result{}, fmt.Errorf("failed to collect files: %w", err)
	}
	slog.Info("Files collected", "run_id", runID, "roots", len(roots),
		"scanned", collected.Scanned, "documents", len(collected.Documents))

	o.emit(runID, PhaseBulkLoading)
	loaded := o.loader.IndexDocuments(ctx, collected.Documents)

	return Result{
		Indexed:    loaded.Indexed,
		Considered: len(collected.Documents),
		Scanned:    collected.Scanned,
		Errors:     loaded.HadErrors,
		ErrorItems: loaded.ErrorItems,
	}, nil
}

func (o *Orchestrator) collectOptions(roots []string) collector.Options {
	opts := collector.Options{Roots: roots}
	if o.sources != nil {
		opts.Extensions = o.sources.Extensions()
		opts.ExcludeDirs = o.sources.ExcludeDirs()
		opts.MaxBytes = o.sources.MaxBytes()
	}
	return opts
}

func (o *Orchestrator) emit(runID string, phase Phase) {
	o.events <- Event{RunID: runID, Phase: phase, At: o.now()}
}

// resolveRoots prefers non-blank explicit roots over the configured ones
func (o *Orchestrator) resolveRoots(explicit []string) []string {
	var roots []string
	for _, r := range explicit {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, config.ExpandHomeDir(r))
		}
	}
	if len(roots) > 0 {
		return roots
	}
	if o.sources == nil {
		return nil
	}
	return o.sources.Roots()
}

func (o *Orchestrator) applyEvents() {
	defer close(o.applierDone)
	for ev := range o.events {
		if o.apply(ev) && o.manifest != nil {
			if err := o.manifest.Save(); err != nil {
				slog.Warn("Failed to save index manifest", "error", err)
			}
		}
	}
}

// apply applies one transition and reports whether it ended the run.
// A terminal event writes the result or error, finished_at, phase and
// indexing=false as one group.
func (o *Orchestrator) apply(ev Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ev.RunID != o.status.RunID || !o.status.Indexing {
		slog.Debug("Ignoring stale job event", "run_id", ev.RunID, "phase", ev.Phase)
		return false
	}

	if !ev.Phase.Terminal() {
		o.status.Phase = ev.Phase
		o.publishLocked()
		return false
	}

	at := ev.At
	o.status.FinishedAt = &at
	o.status.Phase = ev.Phase
	o.status.LastResult = ev.Result
	o.status.LastError = ev.Err
	o.status.Indexing = false

	summary := indexer.RunSummary{RunID: ev.RunID, FinishedAt: at, Error: ev.Err}
	if ev.Result != nil {
		summary.Indexed = ev.Result.Indexed
		summary.Considered = ev.Result.Considered
		summary.Scanned = ev.Result.Scanned
		summary.Errors = ev.Result.Errors
		slog.Info("Indexing job finished", "run_id", ev.RunID, "indexed", ev.Result.Indexed,
			"considered", ev.Result.Considered, "scanned", ev.Result.Scanned, "errors", ev.Result.Errors)
	} else {
		summary.Errors = true
		slog.Error("Indexing job failed", "run_id", ev.RunID, "error", firstLine(ev.Err))
	}
	if o.manifest != nil {
		o.manifest.RecordRun(summary)
	}

	if o.runDone != nil {
		close(o.runDone)
	}
	o.publishLocked()
	return true
}

func (o *Orchestrator) publishLocked() {
	snap := o.status.clone()
	for _, sub := range o.subs {
		select {
		case sub <- snap:
		default:
		}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
