// Package mcp exposes search and indexing to MCP clients.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/seekql/internal/domain"
	"github.com/sha1n/seekql/internal/jobs"
	"github.com/sha1n/seekql/internal/search"
)

// Searcher answers search and document requests
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
	Document(ctx context.Context, id string) (domain.Document, error)
}

// JobRunner starts and reports indexing runs
type JobRunner interface {
	Start(ctx context.Context, roots []string) (jobs.StartResult, error)
	Status() jobs.Status
}

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	// Search enables search_files and read_file when set
	Search Searcher
	// Jobs enables index_status and start_index when set
	Jobs JobRunner
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Search != nil {
		RegisterSearchTool(s, cfg.Search)
		RegisterReadTool(s, cfg.Search)
	}
	if cfg.Jobs != nil {
		RegisterStatusTool(s, cfg.Jobs)
		RegisterStartIndexTool(s, cfg.Jobs)
	}

	return s
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
