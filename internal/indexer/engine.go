package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/sha1n/seekql/internal/domain"
)

const (
	// IndexSuffix is the suffix for index directories
	IndexSuffix = ".bleve"

	// LockSuffix is the suffix for the data directory lock file
	LockSuffix = ".lock"
)

var (
	// ErrIndexNotFound indicates the index does not exist
	ErrIndexNotFound = errors.New("index not found")

	// ErrEngineClosed indicates the engine was closed
	ErrEngineClosed = errors.New("search engine is closed")
)

// BatchResult reports the outcome of one bulk request
type BatchResult struct {
	Indexed  int
	Failures []string
}

// Engine is the search engine contract used by the lifecycle manager, the
// bulk loader and the search service.
type Engine interface {
	// Name returns the index name
	Name() string
	// Exists reports whether the index exists
	Exists(ctx context.Context) (bool, error)
	// Create creates the index with the document mapping
	Create(ctx context.Context) error
	// Delete removes the index. It returns ErrIndexNotFound when absent.
	Delete(ctx context.Context) error
	// IndexBatch upserts documents by ID. Documents rejected individually are
	// reported in Failures; an error means the whole batch failed.
	// Written documents are searchable when the call returns.
	IndexBatch(ctx context.Context, docs []domain.Document) (BatchResult, error)
	// Get returns a document by ID
	Get(ctx context.Context, id string) (domain.Document, bool, error)
	// Search runs a search request
	Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error)
	// DocCount returns the number of documents in the index
	DocCount(ctx context.Context) (uint64, error)
	// Close releases the engine's resources
	Close() error
}

// BleveEngine is an Engine backed by a Bleve index under the data directory.
// The data directory is locked for the lifetime of the engine so that two
// processes never write to the same index.
type BleveEngine struct {
	name    string
	dataDir string
	lock    *DirLock

	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

var _ Engine = (*BleveEngine)(nil)

// OpenBleveEngine locks the data directory and opens the named index if it exists.
// It returns ErrIndexLocked when another process holds the data directory.
func OpenBleveEngine(dataDir, name string) (*BleveEngine, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := NewDirLock(filepath.Join(dataDir, name+LockSuffix))
	if err := lock.Acquire(); err != nil {
		return nil, err
	}

	e := &BleveEngine{
		name:    name,
		dataDir: dataDir,
		lock:    lock,
	}

	index, err := bleve.Open(e.indexPath())
	switch {
	case err == nil:
		e.index = index
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		// created on first EnsureIndex
	default:
		_ = lock.Release()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	return e, nil
}

// indexPath returns the path to the index directory
func (e *BleveEngine) indexPath() string {
	return filepath.Join(e.dataDir, e.name+IndexSuffix)
}

// Name returns the index name
func (e *BleveEngine) Name() string {
	return e.name
}

// Exists reports whether the index exists
func (e *BleveEngine) Exists(_ context.Context) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false, ErrEngineClosed
	}
	return e.index != nil, nil
}

// Create creates the index. Creating an existing index is a no-op.
func (e *BleveEngine) Create(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.index != nil {
		return nil
	}

	index, err := bleve.New(e.indexPath(), CreateIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	e.index = index
	return nil
}

// Delete closes and removes the index from disk
func (e *BleveEngine) Delete(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}

	if e.index == nil {
		if _, err := os.Stat(e.indexPath()); os.IsNotExist(err) {
			return ErrIndexNotFound
		}
	} else {
		if err := e.index.Close(); err != nil {
			return fmt.Errorf("failed to close index: %w", err)
		}
		e.index = nil
	}

	if err := os.RemoveAll(e.indexPath()); err != nil {
		return fmt.Errorf("failed to remove index: %w", err)
	}
	return nil
}

// IndexBatch upserts documents in a single Bleve batch
func (e *BleveEngine) IndexBatch(ctx context.Context, docs []domain.Document) (BatchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	index, err := e.current()
	if err != nil {
		return BatchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	var res BatchResult
	batch := index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc); err != nil {
			res.Failures = append(res.Failures, fmt.Sprintf("%s: %v", doc.ID, err))
			continue
		}
		res.Indexed++
	}

	if batch.Size() == 0 {
		return res, nil
	}
	if err := index.Batch(batch); err != nil {
		return BatchResult{}, fmt.Errorf("batch index failed: %w", err)
	}
	return res, nil
}

// Get fetches a stored document by ID
func (e *BleveEngine) Get(ctx context.Context, id string) (domain.Document, bool, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{domain.FieldPath, domain.FieldFilename, domain.FieldContent}
	req.Size = 1

	res, err := e.Search(ctx, req)
	if err != nil {
		return domain.Document{}, false, err
	}
	if len(res.Hits) == 0 {
		return domain.Document{}, false, nil
	}

	hit := res.Hits[0]
	doc := domain.Document{ID: hit.ID}
	if val, ok := hit.Fields[domain.FieldPath].(string); ok {
		doc.Path = val
	}
	if val, ok := hit.Fields[domain.FieldFilename].(string); ok {
		doc.Filename = val
	}
	if val, ok := hit.Fields[domain.FieldContent].(string); ok {
		doc.Content = val
	}
	return doc, true, nil
}

// Search runs req against the index
func (e *BleveEngine) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	index, err := e.current()
	if err != nil {
		return nil, err
	}
	return index.SearchInContext(ctx, req)
}

// DocCount returns the number of documents in the index
func (e *BleveEngine) DocCount(_ context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	index, err := e.current()
	if err != nil {
		return 0, err
	}
	return index.DocCount()
}

// Close closes the index and releases the data directory lock
func (e *BleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if e.index != nil {
		if err := e.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close index: %w", err))
		}
		e.index = nil
	}
	if err := e.lock.Release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// current returns the open index. Callers must hold e.mu.
func (e *BleveEngine) current() (bleve.Index, error) {
	if e.closed {
		return nil, ErrEngineClosed
	}
	if e.index == nil {
		return nil, ErrIndexNotFound
	}
	return e.index, nil
}
