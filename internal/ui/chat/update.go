// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cortex-tui/internal/session"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one Bubble Tea message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chromeHeight := 4 // header + input + status
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chromeHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chromeHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshViewport()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.ctrl.Abort()
			return m, tea.Quit

		// With the sidebar open, enter and the arrow keys drive thread
		// selection instead of the input line.
		case m.showSidebar && key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}

		case m.showSidebar && key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.snapshots)-1 {
				m.cursor++
			}

		case m.showSidebar && key.Matches(msg, m.keys.Submit):
			if m.cursor >= 0 && m.cursor < len(m.snapshots) {
				m.status = "loading thread…"
				cmds = append(cmds, m.loadThreadCmd(m.snapshots[m.cursor].ThreadID))
			}

		case key.Matches(msg, m.keys.Submit):
			return m.submit()

		case key.Matches(msg, m.keys.Abort):
			if m.streaming {
				m.ctrl.Abort()
				m.status = "stopping…"
			}

		case key.Matches(msg, m.keys.ToggleThink):
			m.showThinking = !m.showThinking
			m.refreshViewport()

		case key.Matches(msg, m.keys.ToggleSearch):
			m.ctrl.SetProSearch(!m.ctrl.ProSearch())

		case key.Matches(msg, m.keys.ToggleSidebar):
			m.showSidebar = !m.showSidebar
			if m.showSidebar {
				m.cursor = 0
				cmds = append(cmds, m.loadHistoryCmd())
			}

		case key.Matches(msg, m.keys.ScrollUp):
			m.viewport.HalfViewUp()

		case key.Matches(msg, m.keys.ScrollDown):
			m.viewport.HalfViewDown()

		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case snapshotNoticeMsg:
		if snap, ok := m.bridge.throttle.Flush(); ok {
			m.live = &snap
			m.refreshViewport()
		} else {
			// Not due yet: render on the next frame tick.
			cmds = append(cmds, flushTickCmd())
		}
		cmds = append(cmds, m.bridge.Wait())

	case flushTickMsg:
		if snap, ok := m.bridge.throttle.Flush(); ok {
			m.live = &snap
			m.refreshViewport()
		}

	case TerminatedMsg:
		m.streaming = false
		m.live = nil
		m.bridge.throttle.Drain()
		switch msg.State {
		case session.StateFinalized:
			m.status = "ready"
		case session.StateAborted:
			m.status = "stopped"
		case session.StateErrored:
			m.status = "error"
		}
		m.refreshViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, m.bridge.Wait())

	case ThreadAssignedMsg:
		// New thread persisted server-side: refresh the sidebar listing.
		cmds = append(cmds, m.loadHistoryCmd(), m.bridge.Wait())

	case HistoryLoadedMsg:
		if msg.Err != nil && len(msg.Snapshots) == 0 {
			m.status = "history unavailable"
		} else {
			m.snapshots = msg.Snapshots
			if m.cursor >= len(m.snapshots) {
				m.cursor = 0
			}
		}

	case ThreadLoadedMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("load failed: %v", msg.Err)
			break
		}
		tid := msg.Thread.ThreadID
		m.ctrl.Log().Replace(&tid, msg.Thread.Messages)
		m.showSidebar = false
		m.status = "ready"
		m.refreshViewport()
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit sends the current input as a new turn.
func (m Model) submit() (tea.Model, tea.Cmd) {
	query := m.input.Value()
	if err := m.ctrl.Submit(context.Background(), query); err != nil {
		return m, nil
	}
	m.input.Reset()
	m.streaming = true
	m.live = nil
	m.status = "thinking…"
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, nil
}
