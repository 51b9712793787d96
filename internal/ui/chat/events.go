// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cortex-tui/internal/history"
	"github.com/jeranaias/cortex-tui/internal/model"
	"github.com/jeranaias/cortex-tui/internal/session"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// snapshotNoticeMsg signals that a fresh streaming snapshot is waiting in the
// throttle. The snapshot itself travels through the throttle, not the
// channel, so a fast stream cannot flood the Bubble Tea loop.
type snapshotNoticeMsg struct{}

// TerminatedMsg reports the terminal state of a streaming turn.
type TerminatedMsg struct {
	State session.State
}

// ThreadAssignedMsg reports the first server thread id for this conversation.
type ThreadAssignedMsg struct {
	ThreadID int64
}

// HistoryLoadedMsg carries a refreshed sidebar listing.
type HistoryLoadedMsg struct {
	Snapshots []model.ChatSnapshot
	Err       error
}

// ThreadLoadedMsg carries a hydrated thread picked from the sidebar.
type ThreadLoadedMsg struct {
	Thread *history.ThreadResponse
	Err    error
}

// flushTickMsg drives throttled snapshot rendering while streaming.
type flushTickMsg struct{}

// =============================================================================
// CONTROLLER BRIDGE
// =============================================================================

// Bridge forwards session.Controller callbacks, which fire on the stream
// goroutine, into the Bubble Tea update loop.
type Bridge struct {
	ch       chan tea.Msg
	throttle *SnapshotThrottle
}

// NewBridge creates a bridge with a buffered channel; publishing never blocks
// the stream goroutine.
func NewBridge() *Bridge {
	return &Bridge{
		ch:       make(chan tea.Msg, 64),
		throttle: NewSnapshotThrottle(),
	}
}

// PublishSnapshot hands a streaming snapshot to the UI. Wire it to
// session.Options.OnSnapshot.
func (b *Bridge) PublishSnapshot(msg model.ChatMessage) {
	b.throttle.Put(msg)
	// Channel full means a notice is already pending and the throttle holds
	// the latest snapshot, so dropping the extra notice is safe.
	select {
	case b.ch <- snapshotNoticeMsg{}:
	default:
	}
}

// PublishTerminated wires to session.Options.OnTerminated. Terminal states
// must reach the UI exactly once, so this blocks until the update loop has
// drained room in the channel rather than dropping.
func (b *Bridge) PublishTerminated(state session.State) {
	b.ch <- TerminatedMsg{State: state}
}

// PublishThreadAssigned wires to session.Options.OnThreadAssigned. Like
// terminal states, thread assignment must not be lost.
func (b *Bridge) PublishThreadAssigned(id int64) {
	b.ch <- ThreadAssignedMsg{ThreadID: id}
}

// Wait returns a command that delivers the next bridged message.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}
