// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// MODE
// =============================================================================

// Mode is a concrete color scheme. It is what gets persisted under the
// theme key.
type Mode string

const (
	ModeLight Mode = "light"
	ModeDark  Mode = "dark"
)

// ParseMode accepts "light" or "dark" (case-insensitive).
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLight, ModeDark:
		return m, true
	}
	return "", false
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeDark {
		return ModeLight
	}
	return ModeDark
}

// IsDark reports whether m is the dark scheme.
func (m Mode) IsDark() bool { return m == ModeDark }

// DetectMode asks the terminal for its background color.
func DetectMode() Mode {
	if termenv.HasDarkBackground() {
		return ModeDark
	}
	return ModeLight
}

// ResolveMode picks the starting mode. An explicit configured mode wins,
// then a stored preference, then terminal detection.
func ResolveMode(configured, stored string, detect func() Mode) Mode {
	if m, ok := ParseMode(configured); ok {
		return m
	}
	if m, ok := ParseMode(stored); ok {
		return m
	}
	if detect == nil {
		detect = DetectMode
	}
	return detect()
}

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styled components for the application.
type Theme struct {
	Mode         Mode
	ColorProfile termenv.Profile

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	Sidebar        lipgloss.Style
	SidebarTitle   lipgloss.Style
	SessionItem    lipgloss.Style
	SessionActive  lipgloss.Style
	SessionBusy    lipgloss.Style
	Main           lipgloss.Style
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	UserBody       lipgloss.Style
	AssistantBody  lipgloss.Style
	Empty          lipgloss.Style

	// ==========================================================================
	// EDITORS
	// ==========================================================================

	SystemPanel      lipgloss.Style
	SystemPanelTitle lipgloss.Style
	InputContainer   lipgloss.Style
	InputFocused     lipgloss.Style
	RenamePrompt     lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar   lipgloss.Style
	StatusError lipgloss.Style
	StatusInfo  lipgloss.Style
	ShortcutKey lipgloss.Style
}

// NewTheme builds the styles for mode and makes lipgloss resolve adaptive
// colors for that background.
func NewTheme(mode Mode) *Theme {
	if mode != ModeLight {
		mode = ModeDark
	}
	lipgloss.SetHasDarkBackground(mode.IsDark())

	t := &Theme{
		Mode:         mode,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the mode.
func (t *Theme) GlamourStyle() string {
	return string(t.Mode)
}

func (t *Theme) initStyles() {
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		MarginBottom(1)

	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.SessionActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		Background(SurfaceBright)

	t.SessionBusy = lipgloss.NewStyle().
		Foreground(Emerald)

	t.Main = lipgloss.NewStyle().
		PaddingLeft(1)

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Messages
	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(UserLabel)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(AssistantLabel)
	t.SystemLabel = lipgloss.NewStyle().Bold(true).Foreground(SystemLabel)

	t.UserBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBorder).
		PaddingLeft(1)

	t.AssistantBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBorder).
		PaddingLeft(1)

	t.Empty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Editors
	t.SystemPanel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(SystemBorder).
		Padding(0, 1)

	t.SystemPanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputFocused = t.InputContainer.
		BorderForeground(Cyan)

	t.RenamePrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.StatusInfo = lipgloss.NewStyle().
		Foreground(Emerald)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan)
}
