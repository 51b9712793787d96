// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// and agent search traces.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/jeranaias/cortex-tui/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Cortex"
	default:
		return string(r)
	}
}

// =============================================================================
// SEARCH RESULT TYPE
// =============================================================================

// SearchResult is a single web source attached to an answer.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"` // Snippet, not the full page
}

// Preview returns a truncated snippet suitable for list rendering.
func (s SearchResult) Preview(maxWidth int) string {
	return util.TruncateWidth(s.Content, maxWidth)
}

// =============================================================================
// CHAT MESSAGE TYPE
// =============================================================================

// ChatMessage represents a single finalized turn in a conversation.
//
// Messages appended to a ConversationLog are immutable; only the in-progress
// streaming accumulator (owned by the session) mutates message fields, and it
// hands off a copy on finalize.
type ChatMessage struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Answer attachments. Sources and Images are replaced wholesale when a
	// search-results event arrives; RelatedQueries is set at most once near
	// stream end.
	Sources        []SearchResult `json:"sources,omitempty"`
	Images         []string       `json:"images,omitempty"`
	RelatedQueries []string       `json:"related_queries,omitempty"`

	// ThinkingContent holds reasoning blocks extracted from the answer text.
	// Shown behind a disclosure toggle, never inline.
	ThinkingContent []string `json:"thinking_content,omitempty"`

	// AgentResponse is present only when pro search was used for this turn.
	AgentResponse *AgentSearchResponse `json:"agent_response,omitempty"`

	// IsErrorMessage marks a synthesized error turn.
	IsErrorMessage bool `json:"is_error_message,omitempty"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{
		ID:        generateID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant message ready to accumulate
// streamed content.
func NewAssistantMessage() ChatMessage {
	return ChatMessage{
		ID:        generateID(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
	}
}

// NewErrorMessage creates a synthesized assistant error turn. The partial
// agent trace (if any) is carried along so the progress UI stays visible.
func NewErrorMessage(detail string, agent *AgentSearchResponse) ChatMessage {
	msg := NewAssistantMessage()
	msg.Content = detail
	msg.AgentResponse = agent
	msg.IsErrorMessage = true
	return msg
}

// Clone returns a deep copy of the message. The session publishes clones so
// the rendering layer never aliases the live accumulator.
func (m ChatMessage) Clone() ChatMessage {
	clone := m
	clone.Sources = append([]SearchResult(nil), m.Sources...)
	clone.Images = append([]string(nil), m.Images...)
	clone.RelatedQueries = append([]string(nil), m.RelatedQueries...)
	clone.ThinkingContent = append([]string(nil), m.ThinkingContent...)
	if m.AgentResponse != nil {
		clone.AgentResponse = m.AgentResponse.Clone()
	}
	return clone
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m ChatMessage) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// IsEmpty reports whether the message carries no visible payload at all.
func (m ChatMessage) IsEmpty() bool {
	return m.Content == "" && len(m.Sources) == 0 && len(m.Images) == 0 &&
		len(m.ThinkingContent) == 0 && m.AgentResponse == nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
