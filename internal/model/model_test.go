// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestMessageIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewAssistantMessage().ID
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestCloneIsDeep(t *testing.T) {
	msg := NewAssistantMessage()
	msg.Content = "answer"
	msg.Sources = []SearchResult{{Title: "src"}}
	msg.AgentResponse = NewAgentSearchResponse([]string{"a", "b"})

	clone := msg.Clone()
	clone.Sources[0].Title = "mutated"
	clone.AgentResponse.SetQueries(1, []string{"q"})

	assert.Equal(t, "src", msg.Sources[0].Title)
	assert.Equal(t, StepCurrent, msg.AgentResponse.StepsDetails[0].Status)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, NewAssistantMessage().IsEmpty())

	withText := NewAssistantMessage()
	withText.Content = "x"
	assert.False(t, withText.IsEmpty())

	withTrace := NewAssistantMessage()
	withTrace.AgentResponse = NewAgentSearchResponse([]string{"a"})
	assert.False(t, withTrace.IsEmpty())
}

func TestConversationAppendAndTitle(t *testing.T) {
	conv := NewConversationLog()
	conv.Append(NewUserMessage("what is the capital of France?"))

	assert.Equal(t, 1, conv.Len())
	assert.Equal(t, "what is the capital of France?", conv.Title)
}

func TestConversationHistorySkipsErrorTurns(t *testing.T) {
	conv := NewConversationLog()
	conv.Append(NewUserMessage("q1"))
	conv.Append(NewErrorMessage("it broke", nil))
	asst := NewAssistantMessage()
	asst.Content = "a1"
	conv.Append(asst)

	history := conv.History()
	require.Len(t, history, 2)
	assert.Equal(t, "q1", history[0].Content)
	assert.Equal(t, "a1", history[1].Content)
}

func TestConversationSetThreadID(t *testing.T) {
	conv := NewConversationLog()
	assert.True(t, conv.SetThreadID(42), "first assignment")
	assert.False(t, conv.SetThreadID(42), "second assignment")
	require.NotNil(t, conv.ThreadID)
	assert.Equal(t, int64(42), *conv.ThreadID)
}

func TestConversationReplace(t *testing.T) {
	conv := NewConversationLog()
	conv.Append(NewUserMessage("old"))

	tid := int64(7)
	conv.Replace(&tid, []ChatMessage{
		NewUserMessage("hydrated question"),
	})

	assert.Equal(t, 1, conv.Len())
	require.NotNil(t, conv.ThreadID)
	assert.Equal(t, int64(7), *conv.ThreadID)
	assert.Equal(t, "hydrated question", conv.Title)
}

func TestConversationPrune(t *testing.T) {
	conv := NewConversationLog()
	for i := 0; i < MaxMessages+10; i++ {
		conv.Append(NewUserMessage("m"))
	}
	assert.Equal(t, MaxMessages, conv.Len())
}

func TestRoleDisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Cortex", RoleAssistant.DisplayName())
}
