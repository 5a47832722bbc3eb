// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the color palette and lipgloss styles for the
ollama-chat TUI.

Colors are lipgloss AdaptiveColor values. NewTheme pins lipgloss to the
chosen Mode so the same palette serves the light and dark schemes:

	theme := styles.NewTheme(styles.ResolveMode(cfg.UI.Theme, stored, nil))
	header := theme.Header.Render("ollama-chat")

Mode is the value persisted under the theme key ("light" or "dark").
*/
package styles
