// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
	"github.com/jasonmcalpin/ollama-chat/internal/util"
)

// =============================================================================
// SIDEBAR
// =============================================================================

// SessionItem is one row of the session list.
type SessionItem struct {
	ID     string
	Name   string
	Active bool
	// Busy marks a session with a reply still streaming in.
	Busy bool
}

const (
	activeMarker = "> "
	itemMarker   = "  "
	busyMarker   = " *"
)

// RenderSidebar renders the session list into a column of width cells
// (border included) and height lines. When the list is taller than the
// column, the window scrolls to keep the active session visible.
func RenderSidebar(theme *styles.Theme, items []SessionItem, width, height int) string {
	// padding on both sides plus the right border
	inner := max(width-3, 1)

	var b strings.Builder
	b.WriteString(theme.SidebarTitle.Render("Sessions"))
	b.WriteString("\n")

	if len(items) == 0 {
		b.WriteString(theme.Empty.Render("none yet"))
		b.WriteString("\n")
		b.WriteString(theme.Empty.Render("ctrl+n: new"))
	}

	// title line plus its bottom margin
	rows := height - 2
	active := 0
	for i, it := range items {
		if it.Active {
			active = i
		}
	}
	start, end := VisibleWindow(len(items), active, rows)

	for i := start; i < end; i++ {
		if i > start {
			b.WriteString("\n")
		}
		b.WriteString(renderSessionItem(theme, items[i], inner))
	}

	return theme.Sidebar.
		Width(max(width-1, 1)).
		Height(max(height, 1)).
		MaxHeight(max(height, 1)).
		Render(b.String())
}

func renderSessionItem(theme *styles.Theme, it SessionItem, width int) string {
	marker := itemMarker
	style := theme.SessionItem
	if it.Active {
		marker = activeMarker
		style = theme.SessionActive
	}
	suffix := ""
	if it.Busy {
		suffix = busyMarker
	}

	nameWidth := width - len(marker) - len(suffix)
	name := util.TruncateWidth(util.FirstLine(it.Name), nameWidth)
	if name == "" {
		name = "(untitled)"
	}
	line := style.Render(marker + name)
	if suffix != "" {
		line += theme.SessionBusy.Render(suffix)
	}
	return line
}

// VisibleWindow returns the half-open range [start, end) of n rows to show
// in a column of rows lines so that active stays in view.
func VisibleWindow(n, active, rows int) (start, end int) {
	if rows <= 0 || n == 0 {
		return 0, 0
	}
	if n <= rows {
		return 0, n
	}
	start = active - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}
