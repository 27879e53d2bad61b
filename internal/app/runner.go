package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/seekql/internal/config"
	mcputil "github.com/sha1n/seekql/internal/mcp"
)

// ServerName identifies the MCP server to clients
const ServerName = "seekql"

// RunParams contains dependencies for the run functions
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	CreateServices    func(context.Context, *config.Settings) (*Services, error)
	StartHTTPServer   func(context.Context, *http.Server) error
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:    config.LoadSettingsWithFlags,
		ValidSettings:   config.ValidateSettings,
		CreateServices:  NewServices,
		StartHTTPServer: StartHTTPServer,
	}
}

// setup loads and validates settings, installs the default logger and
// creates the services. The caller must close the returned services.
func setup(ctx context.Context, params RunParams, flags *pflag.FlagSet) (*config.Settings, *Services, error) {
	// Load settings
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Always log to stderr; stdout carries MCP stdio traffic and command output
	slog.SetDefault(slog.New(NewLogHandler(os.Stderr, settings.LogLevel, settings.LogFormat)))

	svc, err := params.CreateServices(ctx, settings)
	if err != nil {
		return nil, nil, err
	}
	return settings, svc, nil
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, svc, err := setup(ctx, params, flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close services", "error", err)
		}
	}()

	slog.Info("Starting SeekQL server", "version", version)
	config.Log(settings)
	svc.WatchSources(ctx)

	mcpServer := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    ServerName,
		Version: version,
		Search:  svc.Search,
		Jobs:    svc.Jobs,
	})

	// Start server
	if settings.Transport == config.TransportStdio {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	srv, err := NewHTTPServer(mcpServer, svc, settings)
	if err != nil {
		return err
	}
	slog.Info("Starting HTTP server", "host", settings.Host, "port", settings.Port, "auth_type", settings.Auth.Type)
	return params.StartHTTPServer(ctx, srv)
}
