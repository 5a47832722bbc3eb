// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components renders the pieces of the ollama-chat TUI.

Components are plain render functions over a *styles.Theme; the Bubble Tea
model in package chat owns all state and calls them from View.

  - RenderSidebar (sidebar.go) - session list with the active session marked
  - RenderHeader (header.go) - session name, selected model and theme
  - RenderStatusBar (statusbar.go) - status text, turn stats and key hints
  - MessageRenderer (message.go) - role-labelled messages, glamour markdown
*/
package components
