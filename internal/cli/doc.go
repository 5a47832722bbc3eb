// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the ollama-chat command line.

Commands:

	ollama-chat                         start the terminal UI
	ollama-chat ask [flags] PROMPT...   send one message and stream the reply
	ollama-chat chat                    line-mode chat with slash commands
	ollama-chat sessions list|show|new|rename|system|delete|export
	ollama-chat models                  list models installed in Ollama
	ollama-chat bench [MODEL...]        time a prompt suite against models
	ollama-chat migrate                 move sessions from the legacy key
	ollama-chat doctor                  check Ollama and the session store
	ollama-chat config show|path|init

Global flags --config, --url, --model and --verbose apply to every command.
Errors map to process exit codes through ExitCode.
*/
package cli
