package mcp

import (
	"context"
	"slices"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/seekql/internal/jobs"
)

func TestCreateServer(t *testing.T) {
	cfg := ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

func TestCreateServer_EmptyConfig(t *testing.T) {
	server := CreateServer(ServerConfig{})
	if server == nil {
		t.Fatal("Expected server to be created even with empty config")
	}
}

func TestCreateServer_RegistersTools(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ServerConfig
		expected []string
	}{
		{
			name:     "search only",
			cfg:      ServerConfig{Name: "seekql", Version: "1.0.0", Search: &stubSearcher{}},
			expected: []string{"read_file", "search_files"},
		},
		{
			name:     "jobs only",
			cfg:      ServerConfig{Name: "seekql", Version: "1.0.0", Jobs: &stubJobs{}},
			expected: []string{"index_status", "start_index"},
		},
		{
			name:     "all",
			cfg:      ServerConfig{Name: "seekql", Version: "1.0.0", Search: &stubSearcher{}, Jobs: &stubJobs{status: jobs.Status{Phase: jobs.PhaseIdle}}},
			expected: []string{"index_status", "read_file", "search_files", "start_index"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := listTools(t, CreateServer(tt.cfg))
			if !slices.Equal(names, tt.expected) {
				t.Errorf("Expected tools %v, got %v", tt.expected, names)
			}
		})
	}
}

// listTools connects an in-memory client and returns the registered tool names
func listTools(t *testing.T, server *mcp.Server) []string {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("Failed to connect server: %v", err)
	}
	defer func() { _ = serverSession.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Failed to connect client: %v", err)
	}
	defer func() { _ = session.Close() }()

	var names []string
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			t.Fatalf("Failed to list tools: %v", err)
		}
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	return names
}
