// Package api exposes indexing, search and configuration over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sha1n/seekql/internal/auth"
	"github.com/sha1n/seekql/internal/config"
	"github.com/sha1n/seekql/internal/domain"
	"github.com/sha1n/seekql/internal/indexer"
	"github.com/sha1n/seekql/internal/jobs"
	"github.com/sha1n/seekql/internal/query"
	"github.com/sha1n/seekql/internal/search"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// JobRunner starts and observes indexing runs
type JobRunner interface {
	Start(ctx context.Context, roots []string) (jobs.StartResult, error)
	Status() jobs.Status
	Indexing() bool
}

// Searcher answers search and document requests
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
	Document(ctx context.Context, id string) (domain.Document, error)
	DocCount(ctx context.Context) (uint64, error)
}

// SourcesStore reads and updates the sources file
type SourcesStore interface {
	Inspect() config.Inspection
	SetRoots(paths []string) (int, error)
}

// Deps holds everything the API serves
type Deps struct {
	IndexName string
	Jobs      JobRunner
	Search    Searcher
	Sources   SourcesStore
	// Manifest is optional; when set /config reports index bookkeeping
	Manifest *indexer.Manifest
	// MCP is optional; when set it is mounted at /sse
	MCP http.Handler

	Auth        config.AuthSettings
	CORSOrigins []string
	// RateLimit is the allowed requests per second; 0 disables limiting
	RateLimit   float64
	FrontendDir string
}

// Server routes the REST API
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

// NewServer creates the API server and registers its routes
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /index", s.handleIndex)
	s.mux.HandleFunc("GET /doc", s.handleDoc)
	s.mux.HandleFunc("GET /search", s.handleSearch)
	s.mux.HandleFunc("GET /config", s.handleGetConfig)
	s.mux.HandleFunc("POST /config", s.handleSaveConfig)

	if s.deps.MCP != nil {
		s.mux.Handle("/sse", s.deps.MCP)
	}
	if s.deps.FrontendDir != "" {
		s.mux.Handle("GET /", http.FileServer(http.Dir(s.deps.FrontendDir)))
	}
}

// Handler returns the routes wrapped with CORS, rate limiting and auth
func (s *Server) Handler() (http.Handler, error) {
	var public []string
	if s.deps.FrontendDir != "" {
		public = append(public, "/", "/index.html", "/favicon.ico", "/assets/")
	}
	authMiddleware, err := auth.NewMiddleware(s.deps.Auth, public...)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	var handler http.Handler = s.mux
	handler = authMiddleware(handler)
	handler = rateLimit(s.deps.RateLimit)(handler)
	handler = cors(s.deps.CORSOrigins)(handler)
	handler = logRequests(handler)
	return handler, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "index": s.deps.IndexName})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Jobs.Status())
}

type indexRequest struct {
	Roots []string `json:"roots"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Jobs.Start(r.Context(), req.Roots)
	switch {
	case errors.Is(err, jobs.ErrAlreadyIndexing):
		writeError(w, http.StatusConflict, "Indexing already in progress")
	case errors.Is(err, jobs.ErrResetFailed), errors.Is(err, jobs.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if strings.TrimSpace(path) == "" {
		writeError(w, http.StatusBadRequest, "query parameter path is required")
		return
	}

	doc, err := s.deps.Search.Document(r.Context(), path)
	if err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"path":     doc.Path,
		"filename": doc.Filename,
		"content":  doc.Content,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	req := search.Request{
		Query:     params.Get("q"),
		AllOf:     params["all_of"],
		AnyOf:     params["any_of"],
		NoneOf:    params["none_of"],
		Highlight: true,
		Style:     search.HighlightHTML,
	}
	var err error
	if req.Limit, err = intParam(params.Get("limit"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if req.Offset, err = intParam(params.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}
	if v := params.Get("highlight"); v != "" {
		if req.Highlight, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "highlight must be a boolean")
			return
		}
	}

	resp, err := s.deps.Search.Search(r.Context(), req)
	if err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type configResponse struct {
	config.Inspection
	Indexing bool                      `json:"indexing"`
	DocCount uint64                    `json:"doc_count"`
	Index    *indexer.ManifestSnapshot `json:"index,omitempty"`
	OK       bool                      `json:"ok,omitempty"`
	Count    *int                      `json:"count,omitempty"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configView(r.Context()))
}

type saveConfigRequest struct {
	SQLSourcePaths []string `json:"sql_source_paths"`
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs.Indexing() {
		writeError(w, http.StatusLocked, "Indexing in progress")
		return
	}

	var req saveConfigRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := s.deps.Sources.SetRoots(req.SQLSourcePaths)
	if err != nil {
		slog.Error("Failed to save config", "error", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to save config: %v", err))
		return
	}
	slog.Info("Source paths updated", "count", count)

	view := s.configView(r.Context())
	view.OK = true
	view.Count = &count
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) configView(ctx context.Context) configResponse {
	view := configResponse{
		Inspection: s.deps.Sources.Inspect(),
		Indexing:   s.deps.Jobs.Indexing(),
	}
	if n, err := s.deps.Search.DocCount(ctx); err == nil {
		view.DocCount = n
	} else {
		slog.Warn("Failed to count documents", "error", err)
	}
	if s.deps.Manifest != nil {
		snap := s.deps.Manifest.Snapshot()
		view.Index = &snap
	}
	return view
}

func writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrBusy):
		writeError(w, http.StatusLocked, "Indexing in progress")
	case errors.Is(err, search.ErrNotFound):
		writeError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrInvalidRequest),
		errors.Is(err, query.ErrSyntax):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeOptionalBody decodes a JSON body into v; an empty body leaves v untouched
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
