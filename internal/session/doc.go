// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the in-memory set of chat sessions and mirrors it to
// a store.Store after every mutation.
//
// # Key Types
//
//   - Registry: ordered id -> Session mapping plus the active selection
//   - Config: storage keys, naming policy and logger
//   - Change: notification delivered to OnChange hooks
//
// # Usage
//
//	reg := session.Open(st, session.DefaultConfig())
//	id := reg.CreateSession()
//	reg.AppendUserMessage(id, "Hi")
//	reg.FoldAssistantFragment(id, "Hel")
//	reg.FoldAssistantFragment(id, "Hello")
//
// Operations on an id that does not exist are no-ops and report false.
// Store failures are logged and never surfaced; the in-memory state stays
// authoritative for the life of the process.
package session
