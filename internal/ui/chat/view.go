// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jasonmcalpin/ollama-chat/internal/ui/components"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the sidebar next to the main column:
// header, optional system prompt panel, transcript, input, status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sidebar := components.RenderSidebar(m.theme, m.sessionItems(), m.sidebarWidth, m.height)

	parts := []string{m.renderHeader()}
	if m.showSystem {
		parts = append(parts, m.renderSystemPanel())
	}
	parts = append(parts,
		m.viewport.View(),
		m.renderInput(),
		m.renderStatus(),
	)
	main := lipgloss.JoinVertical(lipgloss.Left, parts...)

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, m.theme.Main.Render(main))
}

func (m Model) sessionItems() []components.SessionItem {
	entries := m.reg.Sessions()
	active := m.reg.Active()
	items := make([]components.SessionItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, components.SessionItem{
			ID:     e.ID,
			Name:   e.Session.Name,
			Active: e.ID == active,
			Busy:   m.busy[e.ID] > 0,
		})
	}
	return items
}

func (m Model) renderHeader() string {
	info := components.HeaderInfo{
		Model: m.ctl.Model(),
		Mode:  m.theme.Mode,
		Busy:  m.busy[m.reg.Active()] > 0,
	}
	if s, ok := m.reg.Session(m.reg.Active()); ok {
		info.Session = s.Name
	}
	return components.RenderHeader(m.theme, info, m.mainWidth())
}

func (m Model) renderSystemPanel() string {
	title := m.theme.SystemPanelTitle.Render("System prompt")
	if m.focus == focusSystem {
		title += m.theme.StatusBar.Render("  (esc to close editor)")
	}
	return m.theme.SystemPanel.
		Width(m.mainWidth() - 2).
		Render(title + "\n" + m.system.View())
}

func (m Model) renderInput() string {
	style := m.theme.InputContainer
	if m.focus == focusInput {
		style = m.theme.InputFocused
	}
	return style.Width(m.mainWidth()).Render(m.input.View())
}

func (m Model) renderStatus() string {
	if m.focus == focusRename {
		return m.theme.RenamePrompt.Render(m.rename.View())
	}
	hints := HelpLine(m.keys.ShortHelp())
	return components.RenderStatusBar(m.theme, m.status, m.stats, hints, m.mainWidth())
}
