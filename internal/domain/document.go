package domain

import (
	"path/filepath"
	"strings"
)

// Document represents one indexed file.
// It is the primary data structure stored in the Bleve search index.
type Document struct {
	// ID is the fully resolved absolute path of the file.
	// Re-indexing the same file upserts in place because the ID never changes.
	ID string `json:"id"`

	// Path is the absolute path of the file (same value as ID).
	Path string `json:"path"`

	// Filename is the base name of the file.
	// Example: "orders_report.sql"
	Filename string `json:"filename"`

	// Content is the decoded text of the file. Undecodable bytes are replaced.
	Content string `json:"content"`
}

// NewDocument creates a document for the file at absPath.
func NewDocument(absPath, content string) Document {
	return Document{
		ID:       absPath,
		Path:     absPath,
		Filename: filepath.Base(absPath),
		Content:  content,
	}
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	FieldID       = "id"
	FieldPath     = "path"
	FieldFilename = "filename"
	FieldContent  = "content"

	// FieldContentCS is the case-preserving representation of FieldContent.
	// It is indexed from the same document property with a non-lowercasing analyzer.
	FieldContentCS = "content.cs"
)

// Analyzer names registered on the index mapping.
const (
	// AnalyzerCaseInsensitive tokenizes on word boundaries and lowercases.
	AnalyzerCaseInsensitive = "seekql_ci"

	// AnalyzerCaseSensitive tokenizes on word boundaries and keeps case.
	AnalyzerCaseSensitive = "seekql_cs"
)

// DefaultExtensions are indexed when no extensions are configured.
var DefaultExtensions = []string{".sql"}

// NormalizeExtension lower-cases ext and makes sure it starts with a dot.
// A blank extension normalizes to "".
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
