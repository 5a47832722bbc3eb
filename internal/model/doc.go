// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
//
// This package defines the domain types shared by the registry, the stream
// assembler and the UI.
//
// # Key Types
//
//   - Role: Message role enumeration (system, user, assistant)
//   - Message: Single message with role and content
//   - Session: Display name, ordered message history and system prompt
//   - SessionStore: Insertion-ordered mapping of session id to Session
//
// # Persisted Form
//
// A SessionStore encodes to one JSON object keyed by session id:
//
//	{"1700000000000":{"name":"Chat 1","messages":[],"system":""}}
//
// Key order is significant. The first key is the session that becomes
// active when the store is reloaded.
package model
