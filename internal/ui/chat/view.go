// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/cortex-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.showSidebar {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderSidebar(), m.viewport.View()))
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	b.WriteString(m.theme.InputPrompt.Render("> "))
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("cortex")
	mode := ""
	if m.ctrl.ProSearch() {
		mode = m.theme.Shortcut.Render(" [pro search]")
	}
	return m.theme.Header.Width(m.width).Render(title + mode)
}

func (m Model) renderStatus() string {
	status := m.status
	if m.streaming {
		status = m.spin.View() + " " + status
	}
	help := fmt.Sprintf("%s send · %s stop · %s thinking · %s history · %s quit",
		m.theme.Shortcut.Render("enter"),
		m.theme.Shortcut.Render("esc"),
		m.theme.Shortcut.Render("ctrl+t"),
		m.theme.Shortcut.Render("ctrl+h"),
		m.theme.Shortcut.Render("ctrl+c"))
	return m.theme.StatusBar.Width(m.width).Render(status + "  " + help)
}

// renderSidebar lists persisted threads.
func (m Model) renderSidebar() string {
	width := m.width / 3
	var b strings.Builder
	b.WriteString(m.theme.RelatedHeader.Render("History"))
	b.WriteString("\n")
	if len(m.snapshots) == 0 {
		b.WriteString(m.theme.StepPending.Render("no saved threads"))
	}
	for i, snap := range m.snapshots {
		title := snap.Title
		if title == "" {
			title = fmt.Sprintf("thread %d", snap.ThreadID)
		}
		line := util.TruncateWidth(title, width-4)
		if i == m.cursor {
			b.WriteString(m.theme.StepCurrent.Render("▶ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
		b.WriteString(m.theme.StepPending.Render(
			"  " + util.TruncateWidth(util.OneLine(snap.Preview), width-4)))
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().
		Width(width).
		Height(m.viewport.Height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		Render(b.String())
}

// refreshViewport rebuilds the conversation text, appending the live
// streaming message after the committed log.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := m.viewport.Width
	if m.showSidebar {
		width -= m.width / 3
	}

	if m.renderer == nil || m.renderer.width != width || m.renderer.showThinking != m.showThinking {
		m.renderer = newMessageRenderer(m.theme, width, m.cfg.UI.RenderMarkdown, m.showThinking)
	}
	renderer := m.renderer

	var b strings.Builder
	for i, msg := range m.ctrl.Log().Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderer.render(msg, true))
	}
	if m.live != nil {
		if m.ctrl.Log().Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderer.render(*m.live, false))
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(b.String())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
