// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// and agent search traces.
//
// This package defines the core domain types used throughout the application
// for representing answer-engine turns: the growing assistant message with
// its sources, images, and related questions, the multi-step agent search
// trace, and the append-only conversation log.
//
// # Key Types
//
//   - ChatMessage: One finalized turn (content, sources, images, agent trace)
//   - AgentSearchResponse: The pro-search step trace for one assistant turn
//   - ConversationLog: Append-only record of finalized turns plus thread id
//   - ChatSnapshot: Sidebar row describing a persisted thread
//
// # Usage
//
// Build an agent trace from a query plan and advance it:
//
//	trace := model.NewAgentSearchResponse([]string{"Plan", "Search", "Read"})
//	trace.SetQueries(1, []string{"golang sse parser"})
//	trace.FinishAll()
package model
