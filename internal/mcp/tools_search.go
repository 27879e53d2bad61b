package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/seekql/internal/query"
	"github.com/sha1n/seekql/internal/search"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query  string   `json:"query,omitempty" jsonschema:"Search query. Quoted text matches case-sensitively; AND, OR, NOT, % and * are supported outside quotes"`
	AllOf  []string `json:"all_of,omitempty" jsonschema:"Terms that must all appear"`
	AnyOf  []string `json:"any_of,omitempty" jsonschema:"Terms of which at least one must appear"`
	NoneOf []string `json:"none_of,omitempty" jsonschema:"Terms that must not appear"`
	Limit  int      `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
	Offset int      `json:"offset,omitempty" jsonschema:"Number of results to skip"`
}

// SearchHandler handles the search MCP tool.
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, _ *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	resp, err := h.searcher.Search(ctx, search.Request{
		Query:     args.Query,
		AllOf:     args.AllOf,
		AnyOf:     args.AnyOf,
		NoneOf:    args.NoneOf,
		Limit:     args.Limit,
		Offset:    args.Offset,
		Highlight: true,
		Style:     search.HighlightHTML,
	})
	switch {
	case errors.Is(err, search.ErrBusy):
		return errorResult("Search is not available while indexing is in progress. Please try again later."), nil, nil
	case errors.Is(err, search.ErrEmptyQuery):
		return errorResult("Query cannot be empty"), nil, nil
	case errors.Is(err, query.ErrSyntax), errors.Is(err, search.ErrInvalidRequest):
		return errorResult(fmt.Sprintf("Invalid search request: %s", err)), nil, nil
	case err != nil:
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return formatResults(resp, args.Offset), nil, nil
}

// formatResults renders one page of hits as markdown.
func formatResults(resp search.Response, offset int) *mcp.CallToolResult {
	if resp.Total == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", resp.Query))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s':\n\n", resp.Total, resp.Query)

	for i, hit := range resp.Hits {
		fmt.Fprintf(&sb, "### %d. %s\n", offset+i+1, hit.Path)
		sb.WriteString("```sql\n")
		sb.WriteString(hit.Snippet)
		sb.WriteString("\n```\n\n")
	}

	if shown := uint64(offset + len(resp.Hits)); resp.Total > shown {
		fmt.Fprintf(&sb, "... and %d more results\n", resp.Total-shown)
	}

	return textResult(sb.String())
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_files",
		Description: "Full-text search across indexed SQL files. Matched terms are wrapped in <mark> tags",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, searcher Searcher) {
	handler := NewSearchHandler(searcher)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
