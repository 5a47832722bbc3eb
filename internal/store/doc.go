// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides durable key-value persistence for ollama-chat.
//
// # Backends
//
//   - SQLite: a kv table in a WAL-mode database (default)
//   - File: one file per key, written atomically
//   - Memory: process-local, used by tests and --storage=memory
//
// All backends are synchronous. Values are opaque strings; the session
// registry stores its JSON document under DefaultKey and the UI stores its
// theme under DefaultThemeKey.
//
// # Migration
//
// Older releases kept sessions under DefaultLegacyKey. Migrate copies that
// value to the primary key once and erases the legacy key:
//
//	res, err := store.Migrate(s, store.DefaultKey, store.DefaultLegacyKey)
package store
