package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/seekql/internal/config"
)

// testSettings returns valid settings rooted in temporary directories
func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		Transport:   config.TransportHTTP,
		Host:        "127.0.0.1",
		Port:        0,
		Auth:        config.AuthSettings{Type: config.AuthTypeNone},
		ConfigFile:  filepath.Join(t.TempDir(), "seekql.config.yml"),
		CORSOrigins: []string{"http://localhost:3000"},
		LogLevel:    "error",
		Index: config.IndexSettings{
			Name:           "sql_files",
			DataDir:        t.TempDir(),
			BulkChunkSize:  500,
			RequestTimeout: time.Minute,
		},
		Search: config.SearchSettings{CacheSize: 16, DefaultLimit: 10, MaxLimit: 50},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
