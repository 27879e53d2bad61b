package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sha1n/seekql/internal/domain"
)

// DefaultSourcesFile is the sources file used when none is configured
const DefaultSourcesFile = "seekql.config.yml"

const (
	keySourcePaths       = "sql_source_paths"
	keyIncludeExtensions = "include_extensions"
	keyExcludeDirs       = "exclude_dirs"
	keyMaxFileSizeMB     = "max_file_size_mb"

	defaultMaxFileSizeMB = 10
)

// sourcesTemplate is written when the sources file is saved for the first time
const sourcesTemplate = `# SeekQL config

# One or more folders; each will be scanned recursively
sql_source_paths:
  - "C:/path/to/your/sql"

# Optional: which file extensions to index
include_extensions:
  - .sql

# Optional: skip directories by name (case-insensitive)
exclude_dirs:
  - node_modules
  - .git
  - __pycache__

# Optional: max file size (MB) to index; must be a positive number
max_file_size_mb: 10
`

// sourcesValues is the decoded, defaulted content of a sources file
type sourcesValues struct {
	roots         []string
	extensions    []string
	excludeDirs   []string
	maxFileSizeMB int
}

// Sources is the YAML backed provider of indexing roots, file extensions,
// excluded directory names and the maximum file size.
// It is safe for concurrent use.
type Sources struct {
	path string

	mu     sync.RWMutex
	values sourcesValues
}

// PathInfo describes one configured source path after resolution
type PathInfo struct {
	Input    string `json:"input"`
	Resolved string `json:"resolved"`
	Exists   bool   `json:"exists"`
	IsDir    bool   `json:"is_dir"`
}

// Inspection is a point-in-time view of the sources file
type Inspection struct {
	ConfigFile        string     `json:"config_file"`
	ConfigPresent     bool       `json:"config_present"`
	SQLSourcePaths    []PathInfo `json:"sql_source_paths"`
	IncludeExtensions []string   `json:"include_extensions"`
	ExcludeDirs       []string   `json:"exclude_dirs"`
	MaxFileSizeMB     int        `json:"max_file_size_mb"`
	PreserveComments  bool       `json:"preserve_comments"`
}

// LoadSources reads the sources file at path. A missing file yields defaults.
func LoadSources(path string) (*Sources, error) {
	s := &Sources{path: ExpandHomeDir(path)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the sources file location
func (s *Sources) Path() string {
	return s.path
}

// Present reports whether the sources file exists on disk
func (s *Sources) Present() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Reload re-reads the sources file from disk
func (s *Sources) Reload() error {
	values, err := readSources(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Roots returns the configured source paths with ~ expanded
func (s *Sources) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roots := make([]string, 0, len(s.values.roots))
	for _, r := range s.values.roots {
		roots = append(roots, ExpandHomeDir(r))
	}
	return roots
}

// Extensions returns the lower-cased, dot-prefixed file extensions to index
func (s *Sources) Extensions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.values.extensions)
}

// ExcludeDirs returns the lower-cased directory names to skip
func (s *Sources) ExcludeDirs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.values.excludeDirs...)
}

// MaxFileSizeMB returns the maximum indexed file size in megabytes
func (s *Sources) MaxFileSizeMB() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.maxFileSizeMB
}

// MaxBytes returns the maximum indexed file size in bytes
func (s *Sources) MaxBytes() int64 {
	return int64(s.MaxFileSizeMB()) * 1024 * 1024
}

// Inspect resolves every configured path and reports the effective settings
func (s *Sources) Inspect() Inspection {
	s.mu.RLock()
	values := s.values
	s.mu.RUnlock()

	items := make([]PathInfo, 0, len(values.roots))
	for _, input := range values.roots {
		expanded := ExpandHomeDir(input)
		resolved, err := filepath.Abs(expanded)
		if err != nil {
			resolved = expanded
		}
		if real, err := filepath.EvalSymlinks(resolved); err == nil {
			resolved = real
		}
		info := PathInfo{Input: input, Resolved: resolved}
		if st, err := os.Stat(expanded); err == nil {
			info.Exists = true
			info.IsDir = st.IsDir()
		}
		items = append(items, info)
	}

	return Inspection{
		ConfigFile:        s.path,
		ConfigPresent:     s.Present(),
		SQLSourcePaths:    items,
		IncludeExtensions: append([]string(nil), values.extensions...),
		ExcludeDirs:       append([]string(nil), values.excludeDirs...),
		MaxFileSizeMB:     values.maxFileSizeMB,
		PreserveComments:  true,
	}
}

// SetRoots replaces the sql_source_paths sequence in the sources file.
// Only that node is rewritten; comments and the other keys are kept.
// When the file does not exist it is created from the commented template first.
// Returns the number of stored paths.
func (s *Sources) SetRoots(paths []string) (int, error) {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return 0, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(s.path, []byte(sourcesTemplate), 0644); err != nil {
			return 0, fmt.Errorf("failed to write config template: %w", err)
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read config file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse config file: %w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return 0, fmt.Errorf("failed to update config file: top level is not a mapping")
	}

	setSequence(root, keySourcePaths, cleaned)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return 0, fmt.Errorf("failed to encode config file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("failed to encode config file: %w", err)
	}

	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to write config file: %w", err)
	}

	values, err := decodeSources(buf.Bytes())
	if err != nil {
		return 0, err
	}
	s.values = values

	return len(values.roots), nil
}

// setSequence replaces the items of the sequence under key, keeping the
// key and value nodes (and their comments) when they already exist.
func setSequence(mapping *yaml.Node, key string, items []string) {
	content := make([]*yaml.Node, 0, len(items))
	for _, item := range items {
		content = append(content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: item,
			Style: yaml.DoubleQuotedStyle,
		})
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value != key {
			continue
		}
		value := mapping.Content[i+1]
		if value.Kind != yaml.SequenceNode {
			*value = yaml.Node{
				Kind:        yaml.SequenceNode,
				Tag:         "!!seq",
				HeadComment: value.HeadComment,
				LineComment: value.LineComment,
				FootComment: value.FootComment,
			}
		}
		// a comment trailing the old last item belongs to the block, not the item
		if n := len(value.Content); n > 0 && value.Content[n-1].FootComment != "" {
			foot := value.Content[n-1].FootComment
			if len(content) > 0 {
				content[len(content)-1].FootComment = foot
			} else if value.FootComment == "" {
				value.FootComment = foot
			}
		}
		value.Style = 0
		value.Content = content
		return
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: content},
	)
}

func readSources(path string) (sourcesValues, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return decodeSources(nil)
	}
	if err != nil {
		return sourcesValues{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return decodeSources(data)
}

// decodeSources applies defaults and normalization. Keys holding a value of
// the wrong shape fall back to their defaults, as does a non-positive
// max_file_size_mb. An explicitly empty include_extensions list is kept and
// matches no file.
func decodeSources(data []byte) (sourcesValues, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return sourcesValues{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	values := sourcesValues{
		roots:         stringList(raw, keySourcePaths, nil),
		maxFileSizeMB: defaultMaxFileSizeMB,
	}

	include := stringList(raw, keyIncludeExtensions, domain.DefaultExtensions)
	values.extensions = make([]string, 0, len(include))
	for _, ext := range include {
		if ext = domain.NormalizeExtension(ext); ext != "" {
			values.extensions = append(values.extensions, ext)
		}
	}
	for _, dir := range stringList(raw, keyExcludeDirs, nil) {
		if dir = strings.ToLower(strings.TrimSpace(dir)); dir != "" {
			values.excludeDirs = append(values.excludeDirs, dir)
		}
	}

	if node, ok := raw[keyMaxFileSizeMB]; ok {
		var mb int
		switch err := node.Decode(&mb); {
		case err != nil:
			slog.Warn("Ignoring invalid max_file_size_mb", "value", node.Value, "default", defaultMaxFileSizeMB)
		case mb <= 0:
			slog.Warn("Ignoring non-positive max_file_size_mb", "value", mb, "default", defaultMaxFileSizeMB)
		default:
			values.maxFileSizeMB = mb
		}
	}

	return values, nil
}

func stringList(raw map[string]yaml.Node, key string, def []string) []string {
	node, ok := raw[key]
	if !ok || node.Kind != yaml.SequenceNode {
		return append([]string(nil), def...)
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return append([]string(nil), def...)
	}
	return list
}

// writeFileAtomic writes data to a temp file next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
