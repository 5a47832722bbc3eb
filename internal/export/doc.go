// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders sessions to portable formats.
//
// # Supported Formats
//
//   - JSON: the stored document, an object keyed by session id
//   - YAML: a list of {id, name, system, messages} for reading and diffing
//   - Markdown: front matter plus one section per session
//   - HTML: a standalone page; message markdown is rendered with goldmark
//
// # Usage
//
//	exp, err := export.New(export.FormatMarkdown, nil)
//	data, err := exp.Export(reg.Sessions())
//
// Write to a timestamped file:
//
//	path, err := export.ExportToFile(entries, exp, ".", time.Now())
package export
