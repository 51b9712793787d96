// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol implements the wire protocol of the Cortex streaming
// backend: SSE-style frame reassembly and typed event parsing.
//
// The backend answers a chat request with a line-oriented stream. Each frame
// is a "data: <json>" line (or several) terminated by a blank line, and each
// JSON payload is an envelope {event, data} naming one of ten event kinds.
//
// # Key Types
//
//   - FrameDecoder: chunk-boundary-safe splitter from raw bytes to payloads
//   - Event / ParseEvent: closed set of typed events, one per wire kind
//   - DecodeError: per-frame parse failure; log and skip, never stream-fatal
//   - RecoveryFunc / RecoverResponseText: last-ditch text salvage for corrupt
//     local-model frames
//
// # Usage
//
//	dec := protocol.NewFrameDecoder()
//	for chunk := range chunks {
//		for _, payload := range dec.Feed(chunk) {
//			ev, err := protocol.ParseEvent(payload)
//			if err != nil {
//				log.Printf("skipping frame: %v", err)
//				continue
//			}
//			apply(ev)
//		}
//	}
//	for _, payload := range dec.Close() { ... }
package protocol
