// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the ollama-chat configuration.
//
// The file lives at ~/.ollama-chat/config.toml (OLLAMA_CHAT_HOME moves the
// directory). Loading applies, in order: the file, OLLAMA_CHAT_*
// environment overrides, version migration, defaults and validation.
//
// # Example
//
//	[ollama]
//	url = "http://localhost:11434"
//	default_model = "llama3:8b"
//
//	[storage]
//	backend = "sqlite"
//
//	[ui]
//	theme = "auto"
package config
