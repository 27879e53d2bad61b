package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/seekql/internal/jobs"
)

// StatusArgument takes no parameters.
type StatusArgument struct{}

// StartIndexArgument defines reindex parameters.
type StartIndexArgument struct {
	Roots []string `json:"roots,omitempty" jsonschema:"Directories to index instead of the configured sql_source_paths"`
}

// StatusHandler reports the indexing job state.
type StatusHandler struct {
	jobs JobRunner
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(runner JobRunner) *StatusHandler {
	return &StatusHandler{jobs: runner}
}

// Handle formats the current job snapshot.
func (h *StatusHandler) Handle(_ context.Context, _ *mcp.CallToolRequest, _ StatusArgument) (*mcp.CallToolResult, any, error) {
	return textResult(FormatStatus(h.jobs.Status())), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *StatusHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "index_status",
		Description: "Report the state of the indexing job and the result of the last run",
	}
}

// FormatStatus renders a job snapshot as markdown.
func FormatStatus(st jobs.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Phase**: %s\n", st.Phase)
	fmt.Fprintf(&sb, "**Indexing**: %t\n", st.Indexing)
	if st.RunID != "" {
		fmt.Fprintf(&sb, "**Run**: %s\n", st.RunID)
	}
	if st.StartedAt != nil {
		fmt.Fprintf(&sb, "**Started**: %s\n", st.StartedAt.Format(time.RFC3339))
	}
	if st.FinishedAt != nil {
		fmt.Fprintf(&sb, "**Finished**: %s\n", st.FinishedAt.Format(time.RFC3339))
	}
	if r := st.LastResult; r != nil {
		fmt.Fprintf(&sb, "**Indexed**: %d of %d considered (%d scanned)\n", r.Indexed, r.Considered, r.Scanned)
		if r.Note != "" {
			fmt.Fprintf(&sb, "**Note**: %s\n", r.Note)
		}
		for _, item := range r.ErrorItems {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
	}
	if st.LastError != "" {
		fmt.Fprintf(&sb, "\n**Error**:\n```\n%s\n```\n", st.LastError)
	}
	return sb.String()
}

// RegisterStatusTool registers the status tool with an MCP server.
func RegisterStatusTool(server *mcp.Server, runner JobRunner) {
	handler := NewStatusHandler(runner)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// StartIndexHandler starts a reindex run.
type StartIndexHandler struct {
	jobs JobRunner
}

// NewStartIndexHandler creates a new start handler.
func NewStartIndexHandler(runner JobRunner) *StartIndexHandler {
	return &StartIndexHandler{jobs: runner}
}

// Handle resets the index and starts a run in the background.
func (h *StartIndexHandler) Handle(ctx context.Context, _ *mcp.CallToolRequest, args StartIndexArgument) (*mcp.CallToolResult, any, error) {
	res, err := h.jobs.Start(ctx, args.Roots)
	switch {
	case errors.Is(err, jobs.ErrAlreadyIndexing):
		return errorResult("Indexing already in progress. Use index_status to follow it."), nil, nil
	case err != nil:
		return errorResult(fmt.Sprintf("Failed to start indexing: %s", err)), nil, nil
	}

	return textResult(fmt.Sprintf("Indexing started (run %s). The index was reset; use index_status to follow progress.", res.RunID)), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *StartIndexHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "start_index",
		Description: "Drop the index and rebuild it from the configured or given directories",
	}
}

// RegisterStartIndexTool registers the start tool with an MCP server.
func RegisterStartIndexTool(server *mcp.Server, runner JobRunner) {
	handler := NewStartIndexHandler(runner)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
