package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sha1n/seekql/internal/domain"
)

const (
	// DefaultChunkSize is the number of documents per bulk request
	DefaultChunkSize = 500

	// DefaultRequestTimeout bounds a single bulk request
	DefaultRequestTimeout = 120 * time.Second

	// MaxErrorItems caps the number of reported error messages
	MaxErrorItems = 10
)

// LoadResult summarizes a bulk load
type LoadResult struct {
	Indexed    int      `json:"indexed"`
	HadErrors  bool     `json:"errors"`
	ErrorItems []string `json:"error_items"`
}

// Loader upserts documents into the index in chunks
type Loader struct {
	engine    Engine
	chunkSize int
	timeout   time.Duration
}

// NewLoader creates a Loader. Non-positive values select the defaults.
func NewLoader(engine Engine, chunkSize int, timeout time.Duration) *Loader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Loader{
		engine:    engine,
		chunkSize: chunkSize,
		timeout:   timeout,
	}
}

// IndexDocuments upserts docs by ID, chunkSize documents per request.
// Partial failures are counted and up to MaxErrorItems messages are kept;
// nothing is retried. When the engine is unavailable the result is
// {0, true, [description]}.
func (l *Loader) IndexDocuments(ctx context.Context, docs []domain.Document) LoadResult {
	res := LoadResult{ErrorItems: []string{}}
	if len(docs) == 0 {
		return res
	}

	for start := 0; start < len(docs); start += l.chunkSize {
		if err := ctx.Err(); err != nil {
			slog.Error("Bulk load aborted", "error", err)
			return LoadResult{Indexed: 0, HadErrors: true, ErrorItems: []string{err.Error()}}
		}
		end := min(start+l.chunkSize, len(docs))
		chunk := docs[start:end]

		batch, err := l.indexChunk(ctx, chunk)
		if err != nil {
			if isUnavailable(err) || ctx.Err() != nil {
				slog.Error("Bulk load aborted", "error", err)
				return LoadResult{Indexed: 0, HadErrors: true, ErrorItems: []string{err.Error()}}
			}
			slog.Warn("Bulk request failed", "documents", len(chunk), "error", err)
			res.HadErrors = true
			res.addError(fmt.Sprintf("batch of %d documents failed: %v", len(chunk), err))
			continue
		}

		res.Indexed += batch.Indexed
		for _, f := range batch.Failures {
			res.HadErrors = true
			res.addError(f)
		}
	}

	return res
}

func (r *LoadResult) addError(msg string) {
	if len(r.ErrorItems) < MaxErrorItems {
		r.ErrorItems = append(r.ErrorItems, "index: "+msg)
	}
}

// indexChunk runs one bulk request bounded by the request timeout.
// On timeout the request is reported as failed even though the engine may
// still apply it.
func (l *Loader) indexChunk(ctx context.Context, chunk []domain.Document) (BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type outcome struct {
		res BatchResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := l.engine.IndexBatch(ctx, chunk)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return BatchResult{}, fmt.Errorf("request timed out after %s", l.timeout)
		}
		return BatchResult{}, ctx.Err()
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrEngineClosed) || errors.Is(err, ErrIndexNotFound)
}
