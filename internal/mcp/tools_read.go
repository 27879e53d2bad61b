package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/seekql/internal/search"
)

// ReadArgument defines read parameters.
type ReadArgument struct {
	Path string `json:"path" jsonschema:"Absolute path of an indexed file, as returned by search_files"`
}

// ReadHandler handles the read MCP tool.
type ReadHandler struct {
	searcher Searcher
}

// NewReadHandler creates a new read handler.
func NewReadHandler(searcher Searcher) *ReadHandler {
	return &ReadHandler{searcher: searcher}
}

// Handle returns the indexed content of a file. It reads from the index,
// not the filesystem, so only collected files are reachable.
func (h *ReadHandler) Handle(ctx context.Context, _ *mcp.CallToolRequest, args ReadArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Path) == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	doc, err := h.searcher.Document(ctx, args.Path)
	switch {
	case errors.Is(err, search.ErrBusy):
		return errorResult("Files are not available while indexing is in progress. Please try again later."), nil, nil
	case errors.Is(err, search.ErrNotFound):
		return errorResult(fmt.Sprintf("File not found in index: %s", args.Path)), nil, nil
	case err != nil:
		return errorResult(fmt.Sprintf("Error reading file: %s", err)), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**File**: `%s`\n", doc.Path)
	fmt.Fprintf(&sb, "**Size**: %d bytes\n\n", len(doc.Content))
	fmt.Fprintf(&sb, "```%s\n%s\n```", languageHint(doc.Filename), doc.Content)

	return textResult(sb.String()), nil, nil
}

// languageHint maps a filename to a code block language.
func languageHint(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "":
		return "text"
	case "psql", "pgsql", "ddl", "dml":
		return "sql"
	default:
		return ext
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReadHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "read_file",
		Description: "Read the indexed content of a file found by search_files",
	}
}

// RegisterReadTool registers the read tool with an MCP server.
func RegisterReadTool(server *mcp.Server, searcher Searcher) {
	handler := NewReadHandler(searcher)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
