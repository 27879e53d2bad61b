package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"

	"github.com/sha1n/seekql/internal/domain"
)

// closeEngine is a helper to close an engine in tests and fail on error
func closeEngine(t *testing.T, e Engine) {
	t.Helper()
	if err := e.Close(); err != nil {
		t.Errorf("Failed to close engine: %v", err)
	}
}

func openEngine(t *testing.T, dir string) *BleveEngine {
	t.Helper()
	e, err := OpenBleveEngine(dir, "sql_files")
	if err != nil {
		t.Fatalf("OpenBleveEngine failed: %v", err)
	}
	return e
}

func TestOpenBleveEngine_NewDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	e := openEngine(t, dir)
	defer closeEngine(t, e)

	if e.Name() != "sql_files" {
		t.Errorf("Name() = %q, want 'sql_files'", e.Name())
	}
	exists, err := e.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected index not to exist before Create")
	}
	if _, err := os.Stat(filepath.Join(dir, "sql_files.lock")); err != nil {
		t.Errorf("Lock file should exist: %v", err)
	}
}

func TestBleveEngine_CreateAndReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := openEngine(t, dir)
	if err := e.Create(ctx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// creating twice is a no-op
	if err := e.Create(ctx); err != nil {
		t.Fatalf("Second Create failed: %v", err)
	}
	if _, err := e.IndexBatch(ctx, []domain.Document{domain.NewDocument("/a/q.sql", "select 1")}); err != nil {
		t.Fatalf("IndexBatch failed: %v", err)
	}
	closeEngine(t, e)

	if _, err := os.Stat(filepath.Join(dir, "sql_files.bleve")); err != nil {
		t.Fatalf("Index directory should exist: %v", err)
	}

	reopened := openEngine(t, dir)
	defer closeEngine(t, reopened)

	exists, _ := reopened.Exists(ctx)
	if !exists {
		t.Fatal("Expected index to exist after reopen")
	}
	count, err := reopened.DocCount(ctx)
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("DocCount = %d, want 1", count)
	}
}

func TestOpenBleveEngine_LockedByAnotherHolder(t *testing.T) {
	dir := t.TempDir()
	first := openEngine(t, dir)
	defer closeEngine(t, first)

	_, err := OpenBleveEngine(dir, "sql_files")
	if !errors.Is(err, ErrIndexLocked) {
		t.Fatalf("Expected ErrIndexLocked, got %v", err)
	}
}

func TestBleveEngine_IndexBatchGetAndUpsert(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir())
	defer closeEngine(t, e)
	if err := e.Create(ctx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	docs := []domain.Document{
		domain.NewDocument("/sql/a.sql", "SELECT * FROM orders"),
		domain.NewDocument("/sql/b.sql", "SELECT * FROM customers"),
	}
	res, err := e.IndexBatch(ctx, docs)
	if err != nil {
		t.Fatalf("IndexBatch failed: %v", err)
	}
	if res.Indexed != 2 || len(res.Failures) != 0 {
		t.Errorf("IndexBatch = %+v, want 2 indexed and no failures", res)
	}

	// upsert by ID keeps the count stable
	docs[0].Content = "SELECT id FROM orders"
	if _, err := e.IndexBatch(ctx, docs[:1]); err != nil {
		t.Fatalf("IndexBatch upsert failed: %v", err)
	}
	count, _ := e.DocCount(ctx)
	if count != 2 {
		t.Errorf("DocCount = %d, want 2", count)
	}

	doc, found, err := e.Get(ctx, "/sql/a.sql")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected document to be found")
	}
	if doc.Path != "/sql/a.sql" || doc.Filename != "a.sql" || doc.Content != "SELECT id FROM orders" {
		t.Errorf("Get returned %+v", doc)
	}

	_, found, err = e.Get(ctx, "/sql/missing.sql")
	if err != nil {
		t.Fatalf("Get missing failed: %v", err)
	}
	if found {
		t.Error("Expected missing document not to be found")
	}
}

func TestBleveEngine_DeleteRemovesIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	e := openEngine(t, dir)
	defer closeEngine(t, e)

	if err := e.Delete(ctx); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("Delete of absent index = %v, want ErrIndexNotFound", err)
	}

	if err := e.Create(ctx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := e.Delete(ctx); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sql_files.bleve")); !os.IsNotExist(err) {
		t.Error("Index directory should be removed")
	}
	if _, err := e.DocCount(ctx); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("DocCount after delete = %v, want ErrIndexNotFound", err)
	}
}

func TestBleveEngine_ClosedEngine(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir())
	if err := e.Create(ctx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	closeEngine(t, e)
	// closing twice is a no-op
	closeEngine(t, e)

	if _, err := e.Exists(ctx); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Exists after close = %v, want ErrEngineClosed", err)
	}
	if _, err := e.IndexBatch(ctx, []domain.Document{domain.NewDocument("/x.sql", "x")}); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("IndexBatch after close = %v, want ErrEngineClosed", err)
	}
}

func TestCreateIndexMapping_CaseSensitiveSubField(t *testing.T) {
	index, err := bleve.NewMemOnly(CreateIndexMapping())
	if err != nil {
		t.Fatalf("NewMemOnly failed: %v", err)
	}
	defer func() { _ = index.Close() }()

	for _, doc := range []domain.Document{
		domain.NewDocument("/exact.sql", "where name = 'Bob'"),
		domain.NewDocument("/lower.sql", "where name = 'bob'"),
	} {
		if err := index.Index(doc.ID, doc); err != nil {
			t.Fatalf("Index failed: %v", err)
		}
	}

	cs := bleve.NewTermQuery("Bob")
	cs.SetField(domain.FieldContentCS)
	res, err := index.Search(bleve.NewSearchRequest(cs))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total != 1 || res.Hits[0].ID != "/exact.sql" {
		t.Errorf("Expected only /exact.sql for case-sensitive term, got %d hits", res.Total)
	}

	ci := bleve.NewTermQuery("bob")
	ci.SetField(domain.FieldContent)
	res, err = index.Search(bleve.NewSearchRequest(ci))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("Expected 2 hits for case-insensitive term, got %d", res.Total)
	}
}

func TestCreateIndexMapping_KeepsStopWords(t *testing.T) {
	a, err := AnalyzerNamed(domain.AnalyzerCaseInsensitive)
	if err != nil {
		t.Fatalf("AnalyzerNamed failed: %v", err)
	}
	tokens := a.Analyze([]byte("SELECT a FROM t WHERE x"))
	var got []string
	for _, tok := range tokens {
		got = append(got, string(tok.Term))
	}
	want := []string{"select", "a", "from", "t", "where", "x"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := AnalyzerNamed("nope"); err == nil {
		t.Error("Expected error for unknown analyzer")
	}
}
