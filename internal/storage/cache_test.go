// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cortex-tui/internal/model"
)

func openTestCache(t *testing.T) *SnapshotCache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func snap(id int64, title string, age time.Duration) model.ChatSnapshot {
	return model.ChatSnapshot{
		ThreadID: id,
		Title:    title,
		Date:     time.Now().Add(-age).Truncate(time.Second),
		Preview:  "preview of " + title,
	}
}

func TestCacheUpsertAndList(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Upsert(ctx, snap(1, "older", time.Hour)))
	require.NoError(t, cache.Upsert(ctx, snap(2, "newer", time.Minute)))

	snaps, err := cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(2), snaps[0].ThreadID, "newest first")
	assert.Equal(t, "older", snaps[1].Title)
}

func TestCacheUpsertRefreshesExistingRow(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Upsert(ctx, snap(1, "draft title", time.Hour)))
	require.NoError(t, cache.Upsert(ctx, snap(1, "final title", time.Minute)))

	snaps, err := cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "final title", snaps[0].Title)
}

func TestCacheReplace(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Upsert(ctx, snap(1, "stale", time.Hour)))
	require.NoError(t, cache.Replace(ctx, []model.ChatSnapshot{
		snap(7, "server a", time.Minute),
		snap(8, "server b", 2*time.Minute),
	}))

	snaps, err := cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(7), snaps[0].ThreadID)
}

func TestCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	cache, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, cache.Upsert(ctx, snap(3, "kept", time.Minute)))
	require.NoError(t, cache.Close())

	cache, err = Open(path)
	require.NoError(t, err)
	defer cache.Close()

	snaps, err := cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "kept", snaps[0].Title)
}

func TestCachePrune(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	for i := 0; i < maxCachedSnapshots+20; i++ {
		require.NoError(t, cache.Upsert(ctx,
			snap(int64(i), "t", time.Duration(i)*time.Second)))
	}
	require.NoError(t, cache.Prune(ctx))

	snaps, err := cache.List(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, maxCachedSnapshots)
	// The newest rows survive.
	assert.Equal(t, int64(0), snaps[0].ThreadID)
}
