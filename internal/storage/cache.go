// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage caches history sidebar snapshots locally so the sidebar
// renders instantly while a fresh list is fetched from the backend.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/cortex-tui/internal/model"
)

// =============================================================================
// SNAPSHOT CACHE
// =============================================================================

// maxCachedSnapshots bounds the cache; Prune drops the oldest beyond it.
const maxCachedSnapshots = 500

// SnapshotCache is a local SQLite cache of history sidebar rows, keyed by
// thread id. It is a cache, not the source of truth: the backend's /history
// endpoint always wins, and Replace reconciles the two.
type SnapshotCache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path. The parent directory
// is created if missing.
func Open(path string) (*SnapshotCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure cache: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			thread_id INTEGER PRIMARY KEY,
			title     TEXT NOT NULL,
			date      INTEGER NOT NULL,
			preview   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_date ON snapshots(date DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &SnapshotCache{db: db}, nil
}

// Close releases the underlying database.
func (c *SnapshotCache) Close() error {
	return c.db.Close()
}

// Upsert inserts or refreshes one snapshot row.
func (c *SnapshotCache) Upsert(ctx context.Context, snap model.ChatSnapshot) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO snapshots (thread_id, title, date, preview)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			title = excluded.title,
			date = excluded.date,
			preview = excluded.preview`,
		snap.ThreadID, snap.Title, snap.Date.Unix(), snap.Preview)
	if err != nil {
		return fmt.Errorf("upsert snapshot %d: %w", snap.ThreadID, err)
	}
	return nil
}

// Replace reconciles the cache with a fresh server listing: the given rows
// become the entire cache contents.
func (c *SnapshotCache) Replace(ctx context.Context, snaps []model.ChatSnapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	for _, snap := range snaps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (thread_id, title, date, preview)
			VALUES (?, ?, ?, ?)`,
			snap.ThreadID, snap.Title, snap.Date.Unix(), snap.Preview); err != nil {
			return fmt.Errorf("insert snapshot %d: %w", snap.ThreadID, err)
		}
	}
	return tx.Commit()
}

// List returns cached snapshots, newest first.
func (c *SnapshotCache) List(ctx context.Context) ([]model.ChatSnapshot, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT thread_id, title, date, preview FROM snapshots ORDER BY date DESC")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.ChatSnapshot
	for rows.Next() {
		var snap model.ChatSnapshot
		var unix int64
		if err := rows.Scan(&snap.ThreadID, &snap.Title, &unix, &snap.Preview); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Date = time.Unix(unix, 0)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Prune drops the oldest rows beyond the cache bound.
func (c *SnapshotCache) Prune(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE thread_id NOT IN (
			SELECT thread_id FROM snapshots ORDER BY date DESC LIMIT ?
		)`, maxCachedSnapshots)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
