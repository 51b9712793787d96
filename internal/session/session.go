// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"github.com/jeranaias/cortex-tui/internal/model"
	"github.com/jeranaias/cortex-tui/internal/protocol"
	"github.com/jeranaias/cortex-tui/internal/sanitize"
)

// =============================================================================
// STREAMING ACCUMULATOR
// =============================================================================

// Session accumulates one streaming assistant turn. It exists from submit to
// terminal event and is discarded after the finalized message is handed off.
//
// Not safe for concurrent use; the Controller serializes all access.
type Session struct {
	// raw holds the answer text exactly as received. Sanitation re-runs over
	// the whole raw text on every chunk so a thinking block split across
	// chunk boundaries is extracted once its closing marker arrives.
	raw strings.Builder

	msg model.ChatMessage
}

// New creates an empty accumulator.
func New() *Session {
	return &Session{msg: model.NewAssistantMessage()}
}

// Apply mutates the accumulator according to one stream event. Terminal
// events (stream-end, error) carry no accumulator mutation; the Controller
// handles them via Finalize and ErrorTurn.
func (s *Session) Apply(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.BeginStreamEvent:
		s.raw.Reset()
		s.msg = model.NewAssistantMessage()

	case protocol.SearchResultsEvent:
		s.msg.Sources = e.Results
		s.msg.Images = e.Images

	case protocol.TextChunkEvent:
		s.AppendText(e.Text)

	case protocol.RelatedQueriesEvent:
		s.msg.RelatedQueries = e.RelatedQueries

	case protocol.AgentQueryPlanEvent:
		s.msg.AgentResponse = model.NewAgentSearchResponse(e.Steps)

	case protocol.AgentSearchQueriesEvent:
		if s.msg.AgentResponse != nil {
			s.msg.AgentResponse.SetQueries(e.StepNumber, e.Queries)
		}

	case protocol.AgentReadResultsEvent:
		if s.msg.AgentResponse != nil {
			s.msg.AgentResponse.SetResults(e.StepNumber, e.Results)
		}

	case protocol.AgentFinishEvent:
		if s.msg.AgentResponse != nil {
			s.msg.AgentResponse.FinishAll()
		}
	}
}

// AppendText adds raw answer text and refreshes the sanitized view. Text
// salvaged by the decode-recovery path enters here too.
func (s *Session) AppendText(text string) {
	if text == "" {
		return
	}
	s.raw.WriteString(text)
	res := sanitize.Extract(s.raw.String())
	s.msg.Content = res.Content
	s.msg.ThinkingContent = res.Thinking
}

// Snapshot returns a copy of the in-progress message for rendering.
func (s *Session) Snapshot() model.ChatMessage {
	return s.msg.Clone()
}

// Finalize closes out the turn: any agent trace is fully marked done and an
// immutable copy of the message is returned for the conversation log.
func (s *Session) Finalize() model.ChatMessage {
	if s.msg.AgentResponse != nil {
		s.msg.AgentResponse.FinishAll()
	}
	return s.msg.Clone()
}

// ErrorTurn synthesizes the assistant error message for a failed turn. The
// partial agent trace is carried along so the progress shown so far survives.
func (s *Session) ErrorTurn(detail string) model.ChatMessage {
	var trace *model.AgentSearchResponse
	if s.msg.AgentResponse != nil {
		trace = s.msg.AgentResponse.Clone()
	}
	return model.NewErrorMessage(detail, trace)
}

// HasContent reports whether anything user-visible has accumulated.
func (s *Session) HasContent() bool {
	return !s.msg.IsEmpty()
}
