// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat orchestrates a chat turn: it validates input, records the
// user message, builds the outbound history and drives the stream
// assembler against the session that was active when the turn began.
//
// A turn has two halves so a UI can clear its input between them:
//
//	turn, err := ctl.Begin(input)   // validate, append, build request
//	if err != nil {
//	    return err
//	}
//	res, err := ctl.Stream(ctx, turn) // blocks until the reply ends
//
// Submit does both.
package chat
