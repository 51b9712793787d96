// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions shared across cortex-tui.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writes (temp + fsync + rename)
//   - TruncateRunes / TruncateWidth: Unicode-safe truncation for previews
package util
