// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs streaming chat turns: it accumulates events into an
// in-progress assistant message and drives the turn lifecycle.
//
// A Session is the per-turn accumulator. A Controller wraps it with the
// lifecycle state machine (idle, awaiting-begin, streaming, and the three
// terminal states), owns the conversation log, and serializes concurrent
// access between the submitting caller and the stream goroutine.
//
// # Key Types
//
//   - Session: event-by-event accumulator for one assistant turn
//   - Controller: submit/abort, snapshot publishing, terminal commits
//   - State: the turn lifecycle enum
//
// # Usage
//
//	ctrl := session.NewController(model.NewConversationLog(), driver, session.Options{
//		Model:      "sonar",
//		OnSnapshot: func(msg model.ChatMessage) { render(msg) },
//	})
//	ctrl.Submit(ctx, "why is the sky blue?")
package session
