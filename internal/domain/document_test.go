package domain

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestNewDocument(t *testing.T) {
	absPath := filepath.Join(string(filepath.Separator), "data", "sql", "orders.sql")

	doc := NewDocument(absPath, "SELECT 1;")

	if doc.ID != absPath {
		t.Errorf("ID = %q, want %q", doc.ID, absPath)
	}
	if doc.Path != absPath {
		t.Errorf("Path = %q, want %q", doc.Path, absPath)
	}
	if doc.Filename != "orders.sql" {
		t.Errorf("Filename = %q, want 'orders.sql'", doc.Filename)
	}
	if doc.Content != "SELECT 1;" {
		t.Errorf("Content = %q", doc.Content)
	}
}

func TestDocument_JSONFieldNames(t *testing.T) {
	doc := NewDocument("/data/a.sql", "select")

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to marshal Document: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	for _, name := range []string{FieldID, FieldPath, FieldFilename, FieldContent} {
		if _, ok := fields[name]; !ok {
			t.Errorf("Expected JSON field %q to be present", name)
		}
	}
	if len(fields) != 4 {
		t.Errorf("Expected 4 JSON fields, got %d", len(fields))
	}
}

func TestFieldContentCS_IsSubFieldOfContent(t *testing.T) {
	if FieldContentCS != FieldContent+".cs" {
		t.Errorf("FieldContentCS = %q, want %q", FieldContentCS, FieldContent+".cs")
	}
}

func TestNormalizeExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SQL", ".sql"},
		{" .sql ", ".sql"},
		{".DDL", ".ddl"},
		{"  ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeExtension(tt.in); got != tt.want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
