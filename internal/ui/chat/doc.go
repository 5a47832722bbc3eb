// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the Bubble Tea model for the ollama-chat terminal UI.

The model never holds session state of its own. It renders the session
registry on every refresh, and replies stream into the registry from
tea.Cmd goroutines through the chat controller.

# Refresh

The registry change hook does a non-blocking send on a one-slot channel,
so bursts of fragments coalesce into a single pending refresh. A tea.Cmd
waits on that channel, then on a rate.Limiter, and delivers refreshMsg.
A change that lands while the limiter is waiting leaves the slot full, so
the final fragment of a reply always gets its own redraw.

# Keys

	enter         send the input to the active session
	ctrl+n        new session
	ctrl+x        delete the active session
	ctrl+r        rename the active session
	ctrl+p        show or hide the system prompt editor
	tab/shift+tab next or previous session
	ctrl+t        toggle light and dark theme (persisted)
	ctrl+o        next model
	pgup/pgdown   scroll the transcript
	esc           leave the system prompt or rename editor
	ctrl+c        quit
*/
package chat
