// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides lipgloss styles for the cortex TUI, adapted to the
// terminal's color profile and background.
package styles
