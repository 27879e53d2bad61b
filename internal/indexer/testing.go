package indexer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/sha1n/seekql/internal/domain"
)

// FakeEngine is an in-memory Engine with injectable failures.
// It is exported for use in tests of packages that depend on Engine.
// Configure the exported fields before handing the engine to other goroutines.
type FakeEngine struct {
	// ExistsErr, CreateErr and DeleteErr fail the corresponding call
	ExistsErr error
	CreateErr error
	DeleteErr error
	// BatchErr fails every IndexBatch call
	BatchErr error
	// RejectIDs rejects individual documents inside a batch
	RejectIDs map[string]error
	// BeforeBatch runs at the start of every IndexBatch call
	BeforeBatch func(ctx context.Context, docs []domain.Document)

	name string

	mu     sync.Mutex
	index  bleve.Index
	closed bool
	calls  []string
}

var _ Engine = (*FakeEngine)(nil)

// NewFakeEngine creates a fake engine whose index does not exist yet.
func NewFakeEngine(name string) *FakeEngine {
	return &FakeEngine{name: name}
}

// Calls returns the recorded method calls in order
func (f *FakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CountCalls returns how many times the named method was called
func (f *FakeEngine) CountCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *FakeEngine) record(name string) {
	f.calls = append(f.calls, name)
}

// Name returns the index name
func (f *FakeEngine) Name() string {
	return f.name
}

// Exists reports whether the index has been created
func (f *FakeEngine) Exists(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Exists")
	if f.ExistsErr != nil {
		return false, f.ExistsErr
	}
	if f.closed {
		return false, ErrEngineClosed
	}
	return f.index != nil, nil
}

// Create creates an in-memory index with the document mapping
func (f *FakeEngine) Create(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Create")
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if f.closed {
		return ErrEngineClosed
	}
	if f.index != nil {
		return nil
	}
	index, err := bleve.NewMemOnly(CreateIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	f.index = index
	return nil
}

// Delete drops the in-memory index
func (f *FakeEngine) Delete(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Delete")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if f.closed {
		return ErrEngineClosed
	}
	if f.index == nil {
		return ErrIndexNotFound
	}
	err := f.index.Close()
	f.index = nil
	return err
}

// IndexBatch upserts docs, honoring BatchErr and RejectIDs
func (f *FakeEngine) IndexBatch(ctx context.Context, docs []domain.Document) (BatchResult, error) {
	if f.BeforeBatch != nil {
		f.BeforeBatch(ctx, docs)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("IndexBatch")
	if f.BatchErr != nil {
		return BatchResult{}, f.BatchErr
	}
	index, err := f.current()
	if err != nil {
		return BatchResult{}, err
	}

	var res BatchResult
	batch := index.NewBatch()
	for _, doc := range docs {
		if rejectErr, ok := f.RejectIDs[doc.ID]; ok {
			res.Failures = append(res.Failures, fmt.Sprintf("%s: %v", doc.ID, rejectErr))
			continue
		}
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
		return BatchResult{}, err
	}
	return res, nil
}

// Get fetches a document by ID
func (f *FakeEngine) Get(ctx context.Context, id string) (domain.Document, bool, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{domain.FieldPath, domain.FieldFilename, domain.FieldContent}

	res, err := f.Search(ctx, req)
	if err != nil {
		return domain.Document{}, false, err
	}
	if len(res.Hits) == 0 {
		return domain.Document{}, false, nil
	}
	hit := res.Hits[0]
	path, _ := hit.Fields[domain.FieldPath].(string)
	filename, _ := hit.Fields[domain.FieldFilename].(string)
	content, _ := hit.Fields[domain.FieldContent].(string)
	return domain.Document{ID: hit.ID, Path: path, Filename: filename, Content: content}, true, nil
}

// Search runs req against the in-memory index
func (f *FakeEngine) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	f.mu.Lock()
	index, err := f.current()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return index.SearchInContext(ctx, req)
}

// DocCount returns the number of indexed documents
func (f *FakeEngine) DocCount(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	index, err := f.current()
	if err != nil {
		return 0, err
	}
	return index.DocCount()
}

// Close marks the engine closed
func (f *FakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.index != nil {
		err := f.index.Close()
		f.index = nil
		return err
	}
	return nil
}

func (f *FakeEngine) current() (bleve.Index, error) {
	if f.closed {
		return nil, ErrEngineClosed
	}
	if f.index == nil {
		return nil, ErrIndexNotFound
	}
	return f.index, nil
}

// ErrInjected is a convenience error for failure injection
var ErrInjected = errors.New("injected failure")
