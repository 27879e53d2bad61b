package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sha1n/seekql/internal/indexer"
	"github.com/sha1n/seekql/internal/jobs"
	"github.com/sha1n/seekql/internal/search"
)

func TestNewServices_CreatesIndex(t *testing.T) {
	settings := testSettings(t)

	svc, err := NewServices(context.Background(), settings)
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	exists, err := svc.Engine.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	snap := svc.Manifest.Snapshot()
	assert.Equal(t, "sql_files", snap.Name)
	assert.NotNil(t, snap.CreatedAt)
	assert.FileExists(t, indexer.ManifestPath(settings.Index.DataDir, settings.Index.Name))
	assert.Equal(t, jobs.PhaseIdle, svc.Jobs.Status().Phase)
}

func TestNewServices_DataDirLocked(t *testing.T) {
	settings := testSettings(t)

	first, err := NewServices(context.Background(), settings)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	_, err = NewServices(context.Background(), settings)
	require.ErrorIs(t, err, indexer.ErrIndexLocked)
}

func TestNewServices_CorruptManifestStartsFresh(t *testing.T) {
	settings := testSettings(t)
	path := indexer.ManifestPath(settings.Index.DataDir, settings.Index.Name)
	writeFile(t, path, "{not json")

	svc, err := NewServices(context.Background(), settings)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	assert.Equal(t, "sql_files", svc.Manifest.Snapshot().Name)
}

func TestServices_PurgesCacheAfterRun(t *testing.T) {
	// Given an empty index with a cached miss
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "orders.sql"), "select * from orders")

	svc, err := NewServices(context.Background(), testSettings(t))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	resp, err := svc.Search.Search(ctx, search.Request{Query: "orders"})
	require.NoError(t, err)
	require.Zero(t, resp.Total)

	// When a run indexes a matching file
	_, err = svc.Jobs.Start(ctx, []string{root})
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Jobs.Wait(waitCtx))

	// Then the cached miss is dropped
	require.Eventually(t, func() bool {
		resp, err := svc.Search.Search(ctx, search.Request{Query: "orders"})
		return err == nil && resp.Total == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServices_WatchSourcesReloads(t *testing.T) {
	settings := testSettings(t)
	svc, err := NewServices(context.Background(), settings)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	svc.WatchSources(context.Background())
	require.Empty(t, svc.Sources.Roots())

	root := t.TempDir()
	require.NoError(t, os.WriteFile(settings.ConfigFile, []byte("sql_source_paths:\n  - "+root+"\n"), 0644))

	require.Eventually(t, func() bool {
		roots := svc.Sources.Roots()
		return len(roots) == 1 && roots[0] == root
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServices_CloseIsIdempotent(t *testing.T) {
	svc, err := NewServices(context.Background(), testSettings(t))
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())

	_, err = svc.Jobs.Start(context.Background(), nil)
	require.ErrorIs(t, err, jobs.ErrClosed)
}
