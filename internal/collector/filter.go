package collector

import (
	"path/filepath"
	"strings"

	"github.com/sha1n/seekql/internal/domain"
)

// FileFilter decides which directories are descended into and which files
// are candidates for indexing. Matching is case-insensitive.
type FileFilter struct {
	extensions  map[string]struct{}
	excludeDirs map[string]struct{}
	maxBytes    int64
}

// NewFileFilter creates a FileFilter. Extensions may be given with or without
// the leading dot. A nil extensions slice selects domain.DefaultExtensions; an empty
// non-nil slice matches nothing.
func NewFileFilter(extensions, excludeDirs []string, maxBytes int64) *FileFilter {
	if extensions == nil {
		extensions = domain.DefaultExtensions
	}
	f := &FileFilter{
		extensions:  make(map[string]struct{}, len(extensions)),
		excludeDirs: make(map[string]struct{}, len(excludeDirs)),
		maxBytes:    maxBytes,
	}
	for _, ext := range extensions {
		if ext = domain.NormalizeExtension(ext); ext != "" {
			f.extensions[ext] = struct{}{}
		}
	}
	for _, dir := range excludeDirs {
		if dir = strings.ToLower(strings.TrimSpace(dir)); dir != "" {
			f.excludeDirs[dir] = struct{}{}
		}
	}
	return f
}

// ShouldSkipDir reports whether a directory with the given base name is pruned.
func (f *FileFilter) ShouldSkipDir(name string) bool {
	_, ok := f.excludeDirs[strings.ToLower(name)]
	return ok
}

// IsCandidate reports whether the file's extension is one of the indexed extensions.
func (f *FileFilter) IsCandidate(path string) bool {
	_, ok := f.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// TooLarge reports whether a file of the given size exceeds the limit.
// A non-positive limit disables the check.
func (f *FileFilter) TooLarge(size int64) bool {
	return f.maxBytes > 0 && size > f.maxBytes
}
