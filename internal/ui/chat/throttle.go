// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	"github.com/jeranaias/cortex-tui/internal/model"
)

// =============================================================================
// SNAPSHOT THROTTLE
// =============================================================================

// SnapshotThrottle coalesces streaming snapshots for rendering at a capped
// frame rate. Text chunks can arrive hundreds of times per second; rendering
// each one causes flicker and wasted CPU, so only the newest snapshot is
// kept and flushes are spaced at least minInterval apart.
//
// Thread-safety: Put runs on the stream goroutine, Flush on the Bubble Tea
// loop.
type SnapshotThrottle struct {
	mu          sync.Mutex
	latest      model.ChatMessage
	dirty       bool
	lastFlush   time.Time
	minInterval time.Duration
}

// throttle at ~30fps
const defaultFlushInterval = 33 * time.Millisecond

// NewSnapshotThrottle creates a throttle with the default frame cap.
func NewSnapshotThrottle() *SnapshotThrottle {
	return &SnapshotThrottle{minInterval: defaultFlushInterval}
}

// Put replaces the pending snapshot. Older unflushed snapshots are
// superseded, never queued.
func (t *SnapshotThrottle) Put(msg model.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = msg
	t.dirty = true
}

// Flush returns the pending snapshot if one exists and the frame interval
// has elapsed.
func (t *SnapshotThrottle) Flush() (model.ChatMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty || time.Since(t.lastFlush) < t.minInterval {
		return model.ChatMessage{}, false
	}
	t.dirty = false
	t.lastFlush = time.Now()
	return t.latest, true
}

// Drain returns the pending snapshot regardless of the frame interval. Used
// when a turn terminates so the final state is never left unrendered.
func (t *SnapshotThrottle) Drain() (model.ChatMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return model.ChatMessage{}, false
	}
	t.dirty = false
	t.lastFlush = time.Now()
	return t.latest, true
}
