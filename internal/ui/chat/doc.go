// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view for cortex-tui.
//
// The view renders the conversation log plus the live streaming message,
// the pro-search trace panel, sources, related questions, and an optional
// history sidebar.
//
// # Streaming pipeline
//
// The session controller publishes snapshots on its stream goroutine. A
// Bridge forwards them into the Bubble Tea loop, and a SnapshotThrottle caps
// rendering at ~30fps so fast token streams stay smooth instead of
// flickering.
//
// # Key Types
//
//   - Model: the Bubble Tea model (New / Init / Update / View)
//   - Bridge: goroutine-safe controller-to-UI event channel
//   - SnapshotThrottle: frame-rate cap for streaming snapshots
package chat
