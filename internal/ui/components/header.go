// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
	"github.com/jasonmcalpin/ollama-chat/internal/util"
)

// =============================================================================
// HEADER
// =============================================================================

// HeaderInfo is what the header shows.
type HeaderInfo struct {
	Session string
	Model   string
	Mode    styles.Mode
	Busy    bool
}

// RenderHeader renders a one-line header of exactly width cells.
func RenderHeader(theme *styles.Theme, info HeaderInfo, width int) string {
	title := info.Session
	if title == "" {
		title = "ollama-chat"
	}
	modelName := info.Model
	if modelName == "" {
		modelName = "no model"
	}
	right := "model: " + modelName + " | " + string(info.Mode)
	if info.Busy {
		right = "streaming | " + right
	}

	inner := width - 2
	if inner < 1 {
		inner = 1
	}
	rightW := lipgloss.Width(right)
	titleW := inner - rightW - 1
	var line string
	if titleW < 4 {
		line = theme.HeaderTitle.Render(util.TruncateWidth(title, inner))
	} else {
		t := util.TruncateWidth(util.FirstLine(title), titleW)
		gap := inner - lipgloss.Width(t) - rightW
		line = theme.HeaderTitle.Render(t) +
			strings.Repeat(" ", max(gap, 1)) +
			theme.HeaderSubtitle.Render(right)
	}
	return theme.Header.Width(max(width, 1)).MaxHeight(1).Render(line)
}
