// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the cortex TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER / STATUS STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	Shortcut    lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	ErrorBody      lipgloss.Style
	Timestamp      lipgloss.Style

	// ==========================================================================
	// ANSWER ATTACHMENT STYLES
	// ==========================================================================

	SourceTitle   lipgloss.Style
	SourceURL     lipgloss.Style
	RelatedHeader lipgloss.Style
	RelatedItem   lipgloss.Style
	Thinking      lipgloss.Style

	// ==========================================================================
	// AGENT TRACE STYLES
	// ==========================================================================

	TracePanel   lipgloss.Style
	StepDone     lipgloss.Style
	StepCurrent  lipgloss.Style
	StepPending  lipgloss.Style
	StepQuery    lipgloss.Style

	// ==========================================================================
	// INPUT STYLES
	// ==========================================================================

	InputPrompt lipgloss.Style
	Spinner     lipgloss.Style
}

// color palette
var (
	accentDark  = lipgloss.Color("#7D56F4")
	accentLight = lipgloss.Color("#5A32D0")
	dimDark     = lipgloss.Color("#6B7280")
	dimLight    = lipgloss.Color("#9CA3AF")
	green       = lipgloss.Color("#22C55E")
	amber       = lipgloss.Color("#F59E0B")
	red         = lipgloss.Color("#EF4444")
	cyan        = lipgloss.Color("#06B6D4")
)

// NewTheme builds a theme for the given name ("dark" or "light"). An empty
// name falls back to terminal background detection.
func NewTheme(name string) *Theme {
	profile := termenv.ColorProfile()
	isDark := termenv.HasDarkBackground()
	switch name {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}

	accent := accentLight
	dim := dimLight
	if isDark {
		accent = accentDark
		dim = dimDark
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}

	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(dim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.StatusBar = lipgloss.NewStyle().Foreground(dim).Padding(0, 1)
	t.Shortcut = lipgloss.NewStyle().Foreground(accent)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.MessageBody = lipgloss.NewStyle().PaddingLeft(2)
	t.ErrorBody = lipgloss.NewStyle().PaddingLeft(2).Foreground(red)
	t.Timestamp = lipgloss.NewStyle().Foreground(dim)

	t.SourceTitle = lipgloss.NewStyle().Foreground(green)
	t.SourceURL = lipgloss.NewStyle().Foreground(dim).Underline(true)
	t.RelatedHeader = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	t.RelatedItem = lipgloss.NewStyle().PaddingLeft(2).Foreground(dim)
	t.Thinking = lipgloss.NewStyle().PaddingLeft(2).Italic(true).Foreground(dim)

	t.TracePanel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginLeft(2)
	t.StepDone = lipgloss.NewStyle().Foreground(green)
	t.StepCurrent = lipgloss.NewStyle().Bold(true).Foreground(amber)
	t.StepPending = lipgloss.NewStyle().Foreground(dim)
	t.StepQuery = lipgloss.NewStyle().PaddingLeft(4).Foreground(dim)

	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Spinner = lipgloss.NewStyle().Foreground(accent)

	return t
}
