// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across ollama-chat.
//
// # Files
//
//   - atomic.go: crash-safe file replacement (temp file, fsync, rename)
//   - text.go: display-width aware truncation for terminal layouts
package util
