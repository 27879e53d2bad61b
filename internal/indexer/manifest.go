package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestSuffix is appended to the index name to form the manifest filename
	ManifestSuffix = ".manifest.json"
)

// RunSummary records the outcome of the last completed indexing run
type RunSummary struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	Indexed    int       `json:"indexed"`
	Considered int       `json:"considered"`
	Scanned    int       `json:"scanned"`
	Errors     bool      `json:"errors"`
	Error      string    `json:"error,omitempty"`
}

// Manifest stores index bookkeeping next to the index directory.
type Manifest struct {
	Version     int         `json:"version"`
	Index       string      `json:"index"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
	LastResetAt *time.Time  `json:"last_reset_at,omitempty"`
	LastRun     *RunSummary `json:"last_run,omitempty"`

	mu   sync.RWMutex `json:"-"`
	path string
}

// ManifestPath returns the manifest location for an index
func ManifestPath(dataDir, name string) string {
	return filepath.Join(dataDir, name+ManifestSuffix)
}

// NewManifest creates a new empty manifest stored at path.
func NewManifest(path, index string) *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Index:   index,
		path:    path,
	}
}

// LoadManifest reads a manifest from disk, or creates a new one if it doesn't exist.
func LoadManifest(path, index string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(path, index), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	manifest.path = path
	if manifest.Index == "" {
		manifest.Index = index
	}

	return &manifest, nil
}

// Save writes the manifest to disk atomically.
// Uses write-to-temp + rename pattern to prevent corruption.
func (m *Manifest) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}

// MarkCreated records index creation time
func (m *Manifest) MarkCreated(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedAt = &at
}

// MarkReset records a reset time
func (m *Manifest) MarkReset(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastResetAt = &at
}

// RecordRun stores the summary of a completed run
func (m *Manifest) RecordRun(run RunSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRun = &run
}

// ManifestSnapshot is an immutable copy of the manifest contents
type ManifestSnapshot struct {
	Name        string      `json:"name"`
	CreatedAt   *time.Time  `json:"created_at"`
	LastResetAt *time.Time  `json:"last_reset_at"`
	LastRun     *RunSummary `json:"last_run"`
}

// Snapshot returns a copy safe to share across goroutines
func (m *Manifest) Snapshot() ManifestSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := ManifestSnapshot{Name: m.Index}
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		snap.CreatedAt = &t
	}
	if m.LastResetAt != nil {
		t := *m.LastResetAt
		snap.LastResetAt = &t
	}
	if m.LastRun != nil {
		r := *m.LastRun
		snap.LastRun = &r
	}
	return snap
}
