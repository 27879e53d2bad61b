// Package search runs user queries against the index and shapes the hits.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/ansi"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sha1n/seekql/internal/domain"
	"github.com/sha1n/seekql/internal/indexer"
	"github.com/sha1n/seekql/internal/query"
)

const (
	// SnippetFallbackChars is the length of the content prefix used when no
	// highlighted fragment is available
	SnippetFallbackChars = 200

	// FragmentSeparator joins highlighted fragments into one snippet
	FragmentSeparator = "..."

	DefaultCacheSize = 256
	DefaultLimit     = 10
	DefaultMaxLimit  = 200
)

var (
	// ErrBusy is returned while an indexing run is active
	ErrBusy = errors.New("indexing in progress")

	// ErrEmptyQuery is returned for a blank query string
	ErrEmptyQuery = errors.New("query string q or a term group is required")

	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrInvalidRequest is returned for out-of-range parameters
	ErrInvalidRequest = errors.New("invalid request")
)

// HighlightStyle selects how matched terms are marked in snippets
type HighlightStyle string

const (
	HighlightHTML HighlightStyle = html.Name
	HighlightANSI HighlightStyle = ansi.Name
)

// BusyChecker reports whether an indexing run is active
type BusyChecker interface {
	Indexing() bool
}

// IndexEnsurer recreates a missing index
type IndexEnsurer interface {
	EnsureIndex(ctx context.Context) error
}

// Request is a single search. The term groups are combined with Query as
// additional required conditions and may be used without it.
type Request struct {
	Query string
	// AllOf terms must all match
	AllOf []string
	// AnyOf requires at least one of its terms
	AnyOf []string
	// NoneOf terms must not match
	NoneOf []string
	Limit  int
	Offset int
	// Highlight marks matched terms in snippets
	Highlight bool
	// Style defaults to HighlightHTML
	Style HighlightStyle
}

// Hit is one matching document
type Hit struct {
	Path     string  `json:"path"`
	Filename string  `json:"filename"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"-"`
}

// Response holds one page of hits and the total number of matches
type Response struct {
	Query string `json:"query"`
	Hits  []Hit  `json:"hits"`
	Total uint64 `json:"total"`
}

// Settings configures a Service
type Settings struct {
	CacheSize    int
	DefaultLimit int
	MaxLimit     int
}

// Service answers search and document requests.
// Every request is refused with ErrBusy while an indexing run is active.
type Service struct {
	engine       indexer.Engine
	busy         BusyChecker
	ensurer      IndexEnsurer
	analyzers    query.Analyzers
	cache        *lru.Cache[string, Response]
	defaultLimit int
	maxLimit     int
}

// NewService creates a search service. ensurer may be nil.
func NewService(engine indexer.Engine, busy BusyChecker, ensurer IndexEnsurer, settings Settings) (*Service, error) {
	ci, err := indexer.AnalyzerNamed(domain.AnalyzerCaseInsensitive)
	if err != nil {
		return nil, err
	}
	cs, err := indexer.AnalyzerNamed(domain.AnalyzerCaseSensitive)
	if err != nil {
		return nil, err
	}

	if settings.CacheSize <= 0 {
		settings.CacheSize = DefaultCacheSize
	}
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = DefaultLimit
	}
	if settings.MaxLimit <= 0 {
		settings.MaxLimit = DefaultMaxLimit
	}

	cache, err := lru.New[string, Response](settings.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &Service{
		engine:       engine,
		busy:         busy,
		ensurer:      ensurer,
		analyzers:    query.Analyzers{CaseInsensitive: ci, CaseSensitive: cs},
		cache:        cache,
		defaultLimit: settings.DefaultLimit,
		maxLimit:     settings.MaxLimit,
	}, nil
}

// Search translates req.Query and returns one page of hits.
// Quoted segments match case-sensitively; the rest is a case-insensitive
// boolean expression with % and * wildcards.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	if s.isBusy() {
		return Response{}, ErrBusy
	}
	built := query.Build(req.AllOf, req.AnyOf, req.NoneOf)
	if strings.TrimSpace(req.Query) == "" && built == "" {
		return Response{}, ErrEmptyQuery
	}
	if req.Limit == 0 {
		req.Limit = s.defaultLimit
	}
	if req.Limit < 0 || req.Limit > s.maxLimit {
		return Response{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidRequest, s.maxLimit)
	}
	if req.Offset < 0 {
		return Response{}, fmt.Errorf("%w: offset must not be negative", ErrInvalidRequest)
	}
	if req.Style == "" {
		req.Style = HighlightHTML
	}

	display := req.Query
	if strings.TrimSpace(display) == "" {
		display = built
	}

	key := cacheKey(req, built)
	if cached, ok := s.cache.Get(key); ok {
		return cached.clone(), nil
	}

	q := query.Translate(req.Query).And(query.BuildQuery(req.AllOf, req.AnyOf, req.NoneOf))
	compiled, err := query.Compile(q, s.analyzers)
	if err != nil {
		return Response{}, err
	}

	searchReq := bleve.NewSearchRequestOptions(compiled, req.Limit, req.Offset, false)
	searchReq.Fields = []string{domain.FieldPath, domain.FieldFilename, domain.FieldContent}
	if req.Highlight {
		searchReq.Highlight = bleve.NewHighlightWithStyle(string(req.Style))
		searchReq.Highlight.AddField(domain.FieldContent)
		searchReq.Highlight.AddField(domain.FieldContentCS)
	}

	results, err := s.engine.Search(ctx, searchReq)
	if errors.Is(err, indexer.ErrIndexNotFound) {
		s.ensureIndex(ctx)
		return Response{Query: display, Hits: []Hit{}}, nil
	}
	if err != nil {
		return Response{}, fmt.Errorf("failed to search index: %w", err)
	}

	resp := Response{
		Query: display,
		Hits:  make([]Hit, 0, len(results.Hits)),
		Total: results.Total,
	}
	for _, h := range results.Hits {
		path, _ := h.Fields[domain.FieldPath].(string)
		filename, _ := h.Fields[domain.FieldFilename].(string)
		content, _ := h.Fields[domain.FieldContent].(string)

		snippet := ""
		if req.Highlight {
			var parts []string
			parts = append(parts, h.Fragments[domain.FieldContent]...)
			parts = append(parts, h.Fragments[domain.FieldContentCS]...)
			snippet = strings.Join(parts, FragmentSeparator)
		}
		if snippet == "" {
			snippet = truncate(content, SnippetFallbackChars)
		}

		resp.Hits = append(resp.Hits, Hit{
			Path:     path,
			Filename: filename,
			Snippet:  snippet,
			Score:    h.Score,
		})
	}

	s.cache.Add(key, resp)
	return resp.clone(), nil
}

// Document returns the stored document with the given ID
func (s *Service) Document(ctx context.Context, id string) (domain.Document, error) {
	if s.isBusy() {
		return domain.Document{}, ErrBusy
	}
	if strings.TrimSpace(id) == "" {
		return domain.Document{}, fmt.Errorf("%w: path is required", ErrInvalidRequest)
	}

	doc, found, err := s.engine.Get(ctx, id)
	if errors.Is(err, indexer.ErrIndexNotFound) {
		return domain.Document{}, ErrNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	if !found {
		return domain.Document{}, ErrNotFound
	}
	return doc, nil
}

// DocCount returns the number of indexed documents; a missing index counts zero
func (s *Service) DocCount(ctx context.Context) (uint64, error) {
	n, err := s.engine.DocCount(ctx)
	if errors.Is(err, indexer.ErrIndexNotFound) {
		return 0, nil
	}
	return n, err
}

// Purge drops every cached result
func (s *Service) Purge() {
	s.cache.Purge()
}

func (s *Service) isBusy() bool {
	return s.busy != nil && s.busy.Indexing()
}

func (s *Service) ensureIndex(ctx context.Context) {
	if s.ensurer == nil {
		return
	}
	if err := s.ensurer.EnsureIndex(ctx); err != nil {
		slog.Warn("Failed to recreate missing index", "error", err)
	}
}

func (r Response) clone() Response {
	r.Hits = slices.Clone(r.Hits)
	return r
}

func cacheKey(req Request, built string) string {
	return fmt.Sprintf("%d\x00%d\x00%t\x00%s\x00%s\x00%s", req.Limit, req.Offset, req.Highlight, req.Style, req.Query, built)
}

// truncate returns the first n characters of s
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
