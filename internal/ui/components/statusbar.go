// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
	"github.com/jasonmcalpin/ollama-chat/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Level classifies the status text.
type Level int

const (
	LevelNone Level = iota
	LevelInfo
	LevelError
)

// Status is the transient message on the status line.
type Status struct {
	Text  string
	Level Level
}

// RenderStatusBar renders one line: the status text if any, otherwise the
// last turn's stats, then the plain-text key hints, cut to width cells.
func RenderStatusBar(theme *styles.Theme, st Status, stats, hints string, width int) string {
	left := st.Text
	if left == "" {
		left = stats
	}
	left = util.TruncateWidth(util.FirstLine(left), width)

	var line string
	switch {
	case st.Text != "" && st.Level == LevelError:
		line = theme.StatusError.Render(left)
	case st.Text != "" && st.Level == LevelInfo:
		line = theme.StatusInfo.Render(left)
	default:
		line = theme.StatusBar.Render(left)
	}

	used := util.StringWidth(left)
	sep := "  "
	if used == 0 {
		sep = ""
	}
	if room := width - used - len(sep); hints != "" && room > 3 {
		line += sep + theme.StatusBar.Render(util.TruncateWidth(hints, room))
	}
	return line
}
