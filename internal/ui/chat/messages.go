// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/cortex-tui/internal/model"
	"github.com/jeranaias/cortex-tui/internal/ui/styles"
	"github.com/jeranaias/cortex-tui/internal/util"
)

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// messageRenderer turns chat messages into styled terminal text.
type messageRenderer struct {
	theme        *styles.Theme
	markdown     *glamour.TermRenderer
	width        int
	showThinking bool
}

func newMessageRenderer(theme *styles.Theme, width int, renderMarkdown, showThinking bool) *messageRenderer {
	r := &messageRenderer{theme: theme, width: width, showThinking: showThinking}
	if renderMarkdown {
		style := glamour.WithStandardStyle("light")
		if theme.IsDark {
			style = glamour.WithStandardStyle("dark")
		}
		if md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width-4)); err == nil {
			r.markdown = md
		}
	}
	return r
}

// render renders one message. finalized selects markdown formatting: the
// live streaming message is rendered as plain text because reformatting
// half-finished markdown every frame is jarring.
func (r *messageRenderer) render(msg model.ChatMessage, finalized bool) string {
	var b strings.Builder

	label := r.theme.UserLabel
	if msg.Role == model.RoleAssistant {
		label = r.theme.AssistantLabel
	}
	b.WriteString(label.Render(msg.Role.DisplayName()))
	if !msg.Timestamp.IsZero() {
		b.WriteString("  ")
		b.WriteString(r.theme.Timestamp.Render(msg.Timestamp.Format("15:04")))
	}
	b.WriteString("\n")

	if msg.AgentResponse != nil {
		b.WriteString(r.renderTrace(msg.AgentResponse))
		b.WriteString("\n")
	}

	b.WriteString(r.renderBody(msg, finalized))

	if r.showThinking && len(msg.ThinkingContent) > 0 {
		for _, block := range msg.ThinkingContent {
			b.WriteString("\n")
			b.WriteString(r.theme.Thinking.Render("… " + block))
		}
		b.WriteString("\n")
	}

	if len(msg.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(r.renderSources(msg.Sources))
	}
	if len(msg.Images) > 0 {
		b.WriteString("\n")
		b.WriteString(r.renderImages(msg.Images))
	}
	if len(msg.RelatedQueries) > 0 {
		b.WriteString("\n")
		b.WriteString(r.renderRelated(msg.RelatedQueries))
	}

	return b.String()
}

func (r *messageRenderer) renderBody(msg model.ChatMessage, finalized bool) string {
	if msg.IsErrorMessage {
		return r.theme.ErrorBody.Render(msg.Content) + "\n"
	}
	if finalized && msg.Role == model.RoleAssistant && r.markdown != nil {
		if out, err := r.markdown.Render(msg.Content); err == nil {
			return out
		}
	}
	return r.theme.MessageBody.Width(r.width - 2).Render(msg.Content) + "\n"
}

// renderTrace draws the pro-search step panel: done, current, and pending
// steps with their queries and result counts.
func (r *messageRenderer) renderTrace(trace *model.AgentSearchResponse) string {
	var b strings.Builder
	for i, step := range trace.StepsDetails {
		if i > 0 {
			b.WriteString("\n")
		}
		switch step.Status {
		case model.StepDone:
			b.WriteString(r.theme.StepDone.Render("✓ " + step.Step))
		case model.StepCurrent:
			b.WriteString(r.theme.StepCurrent.Render("▶ " + step.Step))
		default:
			b.WriteString(r.theme.StepPending.Render("○ " + step.Step))
		}
		for _, q := range step.Queries {
			b.WriteString("\n")
			b.WriteString(r.theme.StepQuery.Render("⌕ " + q))
		}
		if n := len(step.Results); n > 0 {
			b.WriteString("\n")
			b.WriteString(r.theme.StepQuery.Render(fmt.Sprintf("%d results read", n)))
		}
	}
	return r.theme.TracePanel.Render(b.String())
}

func (r *messageRenderer) renderSources(sources []model.SearchResult) string {
	var b strings.Builder
	b.WriteString(r.theme.RelatedHeader.Render("Sources"))
	for i, src := range sources {
		b.WriteString("\n")
		title := src.Title
		if title == "" {
			title = src.URL
		}
		b.WriteString(r.theme.SourceTitle.Render(fmt.Sprintf("  [%d] %s", i+1, util.TruncateWidth(title, r.width-10))))
		b.WriteString("\n")
		b.WriteString("      " + r.theme.SourceURL.Render(util.TruncateWidth(src.URL, r.width-10)))
	}
	b.WriteString("\n")
	return b.String()
}

// renderImages lists image URLs; terminals get a link, not the bitmap.
func (r *messageRenderer) renderImages(urls []string) string {
	var b strings.Builder
	b.WriteString(r.theme.RelatedHeader.Render("Images"))
	for i, url := range urls {
		b.WriteString("\n")
		b.WriteString(r.theme.SourceURL.Render(
			fmt.Sprintf("  [%d] %s", i+1, util.TruncateWidth(url, r.width-10))))
	}
	b.WriteString("\n")
	return b.String()
}

func (r *messageRenderer) renderRelated(queries []string) string {
	var b strings.Builder
	b.WriteString(r.theme.RelatedHeader.Render("Related"))
	for _, q := range queries {
		b.WriteString("\n")
		b.WriteString(r.theme.RelatedItem.Render("• " + q))
	}
	b.WriteString("\n")
	return b.String()
}
