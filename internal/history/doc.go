// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history talks to the backend's non-streaming thread endpoints:
// hydrating a saved thread and listing the sidebar snapshots.
package history
