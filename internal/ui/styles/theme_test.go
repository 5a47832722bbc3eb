// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// MODE TESTS
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"light", ModeLight, true},
		{"DARK", ModeDark, true},
		{" dark\n", ModeDark, true},
		{"auto", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseMode(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseMode(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMode_Toggle(t *testing.T) {
	assert.Equal(t, ModeLight, ModeDark.Toggle())
	assert.Equal(t, ModeDark, ModeLight.Toggle())
	assert.True(t, ModeDark.IsDark())
	assert.False(t, ModeLight.IsDark())
}

func TestResolveMode(t *testing.T) {
	detectDark := func() Mode { return ModeDark }

	assert.Equal(t, ModeLight, ResolveMode("light", "dark", detectDark), "configured wins")
	assert.Equal(t, ModeLight, ResolveMode("auto", "light", detectDark), "stored beats detection")
	assert.Equal(t, ModeDark, ResolveMode("auto", "", detectDark))
	assert.Equal(t, ModeDark, ResolveMode("auto", "garbage", detectDark))
}

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewTheme(t *testing.T) {
	theme := NewTheme(ModeLight)
	assert.Equal(t, ModeLight, theme.Mode)
	assert.False(t, lipgloss.HasDarkBackground())
	assert.Equal(t, "light", theme.GlamourStyle())

	theme = NewTheme(ModeDark)
	assert.Equal(t, ModeDark, theme.Mode)
	assert.True(t, lipgloss.HasDarkBackground())

	theme = NewTheme("")
	assert.Equal(t, ModeDark, theme.Mode, "unknown modes fall back to dark")
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme(ModeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Sidebar", theme.Sidebar},
		{"SessionActive", theme.SessionActive},
		{"Header", theme.Header},
		{"UserBody", theme.UserBody},
		{"AssistantBody", theme.AssistantBody},
		{"SystemPanel", theme.SystemPanel},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
	}
	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style lost its content", s.name)
		}
	}
}

func TestRenderHelpers(t *testing.T) {
	assert.Contains(t, RenderSuccess("saved"), "saved")
	assert.Contains(t, RenderError("boom"), "boom")
	assert.Contains(t, RenderWarning("careful"), "careful")
	assert.Contains(t, RenderMuted("quiet"), "quiet")
	assert.Contains(t, RenderStatus(true, "ok"), "[OK]")
	assert.Contains(t, RenderStatus(false, "no"), "[ERR]")
}
