// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport opens and supervises streaming connections to the Cortex
// backend.
//
// A Driver owns the retry, backoff, timeout, and partial-success policy for
// one logical chat request. It delivers raw bytes; frame and event decoding
// live in package protocol.
//
// # Key Types
//
//   - Driver: POST /chat with retries on zero-byte failures only
//   - Request: the chat request body (query, history, thread id, model)
//   - TransportError / StatusError / ErrAborted: failure taxonomy
//
// # Usage
//
//	drv := transport.New("http://localhost:8000")
//	err := drv.Stream(ctx, transport.Request{Query: "hello", Model: "sonar"},
//		func(chunk []byte) { decoder.Feed(chunk) })
package transport
