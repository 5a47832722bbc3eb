// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama talks to a local Ollama server and assembles its streamed
// chat replies.
//
// # Key Types
//
//   - Client: HTTP client for /api/chat, /api/tags and /api/version
//   - Assembler: turns the newline-delimited reply stream into fragment
//     folds against a Sink, one session id per turn
//   - Result, StreamStats: what a finished turn produced
//
// # Usage
//
//	client := ollama.NewClient(nil)
//	body, err := client.ChatStream(ctx, "llama3", msgs)
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
//
//	asm := ollama.NewAssembler(registry, sessionID, logger)
//	res, err := asm.Run(ctx, body)
//
// The assembler decodes UTF-8 statefully, so a character split across two
// network reads is joined before the line is parsed. Malformed records are
// skipped and counted; they never end the turn.
package ollama
