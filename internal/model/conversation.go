// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// MaxMessages is the maximum number of messages to keep in a conversation log.
// When exceeded, old messages are pruned to prevent unbounded memory growth.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION LOG
// =============================================================================

// ConversationLog is the append-only record of finalized turns for one
// conversation view.
//
// The streaming core only ever appends; replacing the whole log happens when
// an existing thread is hydrated from the server.
type ConversationLog struct {
	// ThreadID is the server-assigned identifier. Nil until the first
	// successful turn of a fresh conversation completes.
	ThreadID *int64 `json:"thread_id,omitempty"`

	// Title is derived from the first user message for sidebar display.
	Title string `json:"title,omitempty"`

	Messages  []ChatMessage `json:"messages"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewConversationLog creates an empty log for a fresh conversation.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{
		Messages:  make([]ChatMessage, 0),
		UpdatedAt: time.Now(),
	}
}

// Append adds a finalized message to the log.
func (c *ConversationLog) Append(msg ChatMessage) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
	c.pruneOldMessages()
}

// Replace swaps the full contents of the log. Used when hydrating a
// previously persisted thread.
func (c *ConversationLog) Replace(threadID *int64, msgs []ChatMessage) {
	c.ThreadID = threadID
	c.Messages = append(make([]ChatMessage, 0, len(msgs)), msgs...)
	c.Title = ""
	c.UpdatedAt = time.Now()
	c.updateTitle()
}

// SetThreadID records the server-assigned thread identifier.
// Returns true if this was the first assignment for the log.
func (c *ConversationLog) SetThreadID(id int64) bool {
	first := c.ThreadID == nil
	c.ThreadID = &id
	return first
}

// History returns the (role, content) pairs replayed to the backend on the
// next turn. Agent traces, sources, and error turns are not replayed.
func (c *ConversationLog) History() []HistoryMessage {
	history := make([]HistoryMessage, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.IsErrorMessage {
			continue
		}
		history = append(history, HistoryMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return history
}

// Last returns the most recent message, or a zero message if empty.
func (c *ConversationLog) Last() (ChatMessage, bool) {
	if len(c.Messages) == 0 {
		return ChatMessage{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Len returns the number of messages.
func (c *ConversationLog) Len() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *ConversationLog) IsEmpty() bool {
	return len(c.Messages) == 0
}

// updateTitle derives a title from the first user message if not set.
func (c *ConversationLog) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// pruneOldMessages drops the oldest messages once the log exceeds MaxMessages.
func (c *ConversationLog) pruneOldMessages() {
	if len(c.Messages) <= MaxMessages {
		return
	}
	c.Messages = c.Messages[len(c.Messages)-MaxMessages:]
}

// =============================================================================
// WIRE-ADJACENT TYPES
// =============================================================================

// HistoryMessage is the reduced (role, content) turn shape replayed in chat
// requests.
type HistoryMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatSnapshot is one sidebar row describing a persisted thread.
type ChatSnapshot struct {
	ThreadID int64     `json:"thread_id"`
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Preview  string    `json:"preview"`
}
