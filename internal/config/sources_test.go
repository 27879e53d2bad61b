package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sha1n/seekql/internal/collector"
)

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seekql.config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSources_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yml")

	s, err := LoadSources(path)
	require.NoError(t, err)

	assert.False(t, s.Present())
	assert.Empty(t, s.Roots())
	assert.Equal(t, []string{".sql"}, s.Extensions())
	assert.Empty(t, s.ExcludeDirs())
	assert.Equal(t, 10, s.MaxFileSizeMB())
	assert.Equal(t, int64(10*1024*1024), s.MaxBytes())
}

func TestLoadSources_NormalizesValues(t *testing.T) {
	path := writeSources(t, `
sql_source_paths:
  - /data/sql
  - ~/more
include_extensions:
  - SQL
  - .Ddl
exclude_dirs:
  - Node_Modules
  - .git
max_file_size_mb: 2
`)

	s, err := LoadSources(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, []string{"/data/sql", filepath.Join(home, "more")}, s.Roots())
	assert.Equal(t, []string{".sql", ".ddl"}, s.Extensions())
	assert.Equal(t, []string{"node_modules", ".git"}, s.ExcludeDirs())
	assert.Equal(t, 2, s.MaxFileSizeMB())
}

func TestLoadSources_BadShapesFallBackToDefaults(t *testing.T) {
	path := writeSources(t, `
sql_source_paths: not-a-list
include_extensions: 5
max_file_size_mb: huge
`)

	s, err := LoadSources(path)
	require.NoError(t, err)

	assert.Empty(t, s.Roots())
	assert.Equal(t, []string{".sql"}, s.Extensions())
	assert.Equal(t, 10, s.MaxFileSizeMB())
}

func TestLoadSources_InvalidYAML(t *testing.T) {
	path := writeSources(t, "sql_source_paths: [unclosed\n")

	_, err := LoadSources(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestSources_SetRoots_CreatesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "seekql.config.yml")
	s, err := LoadSources(path)
	require.NoError(t, err)

	count, err := s.SetRoots([]string{" /a ", "", "/b"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# SeekQL config")
	assert.Contains(t, text, "# Optional: max file size (MB) to index")
	assert.Contains(t, text, `"/a"`)
	assert.NotContains(t, text, "C:/path/to/your/sql")
	assert.Contains(t, text, "node_modules")

	assert.Equal(t, []string{"/a", "/b"}, s.Roots())
	assert.True(t, s.Present())
}

func TestSources_SetRoots_PreservesOtherKeysAndComments(t *testing.T) {
	path := writeSources(t, `# my sources
sql_source_paths:
  - /old
# keep me
exclude_dirs:
  - build # build output
max_file_size_mb: 3
`)
	s, err := LoadSources(path)
	require.NoError(t, err)

	_, err = s.SetRoots([]string{"/new1", "/new2"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# my sources")
	assert.Contains(t, text, "# keep me")
	assert.Contains(t, text, "# build output")
	assert.NotContains(t, text, "/old")
	assert.Less(t, strings.Index(text, "/new1"), strings.Index(text, "exclude_dirs"))

	reloaded, err := LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/new1", "/new2"}, reloaded.Roots())
	assert.Equal(t, []string{"build"}, reloaded.ExcludeDirs())
	assert.Equal(t, 3, reloaded.MaxFileSizeMB())
}

func TestSources_SetRoots_AddsMissingKey(t *testing.T) {
	path := writeSources(t, "max_file_size_mb: 4\n")
	s, err := LoadSources(path)
	require.NoError(t, err)

	count, err := s.SetRoots([]string{"/x"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 4, s.MaxFileSizeMB())
	assert.Equal(t, []string{"/x"}, s.Roots())
}

func TestSources_SetRoots_EmptyFile(t *testing.T) {
	path := writeSources(t, "")
	s, err := LoadSources(path)
	require.NoError(t, err)

	count, err := s.SetRoots([]string{"/only"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSources_SetRoots_RejectsNonMapping(t *testing.T) {
	path := writeSources(t, "- a\n- b\n")
	s := &Sources{path: path}

	_, err := s.SetRoots([]string{"/x"})
	require.Error(t, err)
}

func TestSources_Inspect(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	missing := filepath.Join(dir, "missing")

	path := writeSources(t, "sql_source_paths:\n  - "+dir+"\n  - "+file+"\n  - "+missing+"\n")
	s, err := LoadSources(path)
	require.NoError(t, err)

	in := s.Inspect()
	assert.Equal(t, path, in.ConfigFile)
	assert.True(t, in.ConfigPresent)
	assert.True(t, in.PreserveComments)
	assert.Equal(t, []string{".sql"}, in.IncludeExtensions)
	require.Len(t, in.SQLSourcePaths, 3)

	assert.True(t, in.SQLSourcePaths[0].Exists)
	assert.True(t, in.SQLSourcePaths[0].IsDir)
	assert.True(t, in.SQLSourcePaths[1].Exists)
	assert.False(t, in.SQLSourcePaths[1].IsDir)
	assert.False(t, in.SQLSourcePaths[2].Exists)
	assert.Equal(t, missing, in.SQLSourcePaths[2].Input)
}

func TestLoadSources_EmptyExtensionListMatchesNothing(t *testing.T) {
	path := writeSources(t, `
include_extensions: []
max_file_size_mb: 0
`)

	s, err := LoadSources(path)
	require.NoError(t, err)

	exts := s.Extensions()
	assert.NotNil(t, exts)
	assert.Empty(t, exts)
	assert.Equal(t, 10, s.MaxFileSizeMB())

	filter := collector.NewFileFilter(exts, nil, s.MaxBytes())
	assert.False(t, filter.IsCandidate("/x/query.sql"))
}
