package indexer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewManifest(t *testing.T) {
	m := NewManifest("/tmp/x.manifest.json", "sql_files")

	if m.Version != ManifestVersion {
		t.Errorf("Version = %d, want %d", m.Version, ManifestVersion)
	}
	if m.Index != "sql_files" {
		t.Errorf("Index = %q, want 'sql_files'", m.Index)
	}
	if m.CreatedAt != nil || m.LastResetAt != nil || m.LastRun != nil {
		t.Error("New manifest should have no timestamps or runs")
	}
}

func TestManifestPath(t *testing.T) {
	got := ManifestPath("/data", "sql_files")
	want := filepath.Join("/data", "sql_files.manifest.json")
	if got != want {
		t.Errorf("ManifestPath() = %q, want %q", got, want)
	}
}

func TestLoadManifest_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sql_files.manifest.json")

	m, err := LoadManifest(path, "sql_files")
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Version != ManifestVersion {
		t.Errorf("Version = %d, want %d", m.Version, ManifestVersion)
	}
	if m.LastRun != nil {
		t.Error("Expected no last run for new manifest")
	}
}

func TestManifest_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sql_files.manifest.json")
	created := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	reset := created.Add(time.Hour)

	m := NewManifest(path, "sql_files")
	m.MarkCreated(created)
	m.MarkReset(reset)
	m.RecordRun(RunSummary{
		RunID:      "run-1",
		FinishedAt: reset.Add(time.Minute),
		Indexed:    4,
		Considered: 4,
		Scanned:    5,
	})

	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after save")
	}

	loaded, err := LoadManifest(path, "ignored")
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if loaded.Index != "sql_files" {
		t.Errorf("Index = %q, want 'sql_files'", loaded.Index)
	}
	if loaded.CreatedAt == nil || !loaded.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, created)
	}
	if loaded.LastResetAt == nil || !loaded.LastResetAt.Equal(reset) {
		t.Errorf("LastResetAt = %v, want %v", loaded.LastResetAt, reset)
	}
	if loaded.LastRun == nil || loaded.LastRun.RunID != "run-1" || loaded.LastRun.Scanned != 5 {
		t.Errorf("LastRun = %+v", loaded.LastRun)
	}
}

func TestLoadManifest_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sql_files.manifest.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := LoadManifest(path, "sql_files"); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestManifest_SnapshotIsACopy(t *testing.T) {
	m := NewManifest(filepath.Join(t.TempDir(), "m.json"), "sql_files")
	m.RecordRun(RunSummary{RunID: "a", Indexed: 1})

	snap := m.Snapshot()
	snap.LastRun.Indexed = 99

	if m.Snapshot().LastRun.Indexed != 1 {
		t.Error("Mutating a snapshot should not affect the manifest")
	}
	if snap.Name != "sql_files" {
		t.Errorf("Snapshot name = %q, want 'sql_files'", snap.Name)
	}
}
