// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cortex-tui/internal/config"
	"github.com/jeranaias/cortex-tui/internal/history"
	"github.com/jeranaias/cortex-tui/internal/model"
	"github.com/jeranaias/cortex-tui/internal/session"
	"github.com/jeranaias/cortex-tui/internal/storage"
	"github.com/jeranaias/cortex-tui/internal/ui/styles"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctrl    *session.Controller
	bridge  *Bridge
	threads *history.Client
	cache   *storage.SnapshotCache // nil when the local cache is disabled
	cfg     *config.Config
	theme   *styles.Theme

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model
	keys     KeyMap

	// live is the in-progress assistant message, rendered below the log.
	live      *model.ChatMessage
	streaming bool

	// renderer is reused across repaints; rebuilding glamour per frame is
	// too slow for streaming refresh rates.
	renderer *messageRenderer

	showThinking bool
	showSidebar  bool
	snapshots    []model.ChatSnapshot
	cursor       int // selected sidebar row

	width  int
	height int
	ready  bool
	status string
}

// New assembles the chat view. The controller must have been created with
// the bridge's Publish* callbacks.
func New(ctrl *session.Controller, bridge *Bridge, threads *history.Client,
	cache *storage.SnapshotCache, cfg *config.Config) Model {

	input := textinput.New()
	input.Placeholder = "Ask anything…"
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	theme := styles.NewTheme(cfg.UI.Theme)
	spin.Style = theme.Spinner

	return Model{
		ctrl:         ctrl,
		bridge:       bridge,
		threads:      threads,
		cache:        cache,
		cfg:          cfg,
		theme:        theme,
		input:        input,
		spin:         spin,
		keys:         DefaultKeyMap(),
		showThinking: cfg.UI.ShowThinking,
		status:       "ready",
	}
}

// Init starts the bridge listener and the sidebar load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		m.bridge.Wait(),
		m.loadHistoryCmd(),
	)
}

// =============================================================================
// COMMANDS
// =============================================================================

const fetchTimeout = 10 * time.Second

// loadHistoryCmd refreshes the sidebar: cached rows first if the backend is
// slow, then the server listing.
func (m Model) loadHistoryCmd() tea.Cmd {
	threads := m.threads
	cache := m.cache
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		snaps, err := threads.FetchHistory(ctx)
		if err != nil && cache != nil {
			if cached, cacheErr := cache.List(ctx); cacheErr == nil && len(cached) > 0 {
				return HistoryLoadedMsg{Snapshots: cached, Err: err}
			}
		}
		if err == nil && cache != nil {
			// Best effort reconcile; the listing is already in hand.
			if replaceErr := cache.Replace(ctx, snaps); replaceErr == nil {
				cache.Prune(ctx)
			}
		}
		return HistoryLoadedMsg{Snapshots: snaps, Err: err}
	}
}

// loadThreadCmd hydrates a sidebar thread.
func (m Model) loadThreadCmd(id int64) tea.Cmd {
	threads := m.threads
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		thread, err := threads.FetchThread(ctx, id)
		return ThreadLoadedMsg{Thread: thread, Err: err}
	}
}

// flushTickCmd schedules the next throttled snapshot render.
func flushTickCmd() tea.Cmd {
	return tea.Tick(defaultFlushInterval, func(time.Time) tea.Msg {
		return flushTickMsg{}
	})
}
