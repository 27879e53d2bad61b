package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/seekql/internal/api"
	"github.com/sha1n/seekql/internal/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// StartHTTPServer serves srv until ctx is cancelled, then shuts it down gracefully
func StartHTTPServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening (HTTP)", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// NewHTTPServer creates the HTTP server exposing the REST API and MCP over SSE.
// Both share the authentication, CORS and rate limit middleware.
func NewHTTPServer(s *mcp.Server, svc *Services, settings *config.Settings) (*http.Server, error) {
	// Factory function returns the server instance for each request
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s
	}, nil)

	apiServer := api.NewServer(api.Deps{
		IndexName:   settings.Index.Name,
		Jobs:        svc.Jobs,
		Search:      svc.Search,
		Sources:     svc.Sources,
		Manifest:    svc.Manifest,
		MCP:         sseHandler,
		Auth:        settings.Auth,
		CORSOrigins: settings.CORSOrigins,
		RateLimit:   settings.RateLimit,
		FrontendDir: settings.FrontendDir,
	})

	handler, err := apiServer.Handler()
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", settings.Host, settings.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}, nil
}
