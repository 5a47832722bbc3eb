// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// maxCacheEntries bounds the rendered-markdown cache.
const maxCacheEntries = 512

// MessageRenderer renders session transcripts. Assistant messages go
// through glamour when markdown is enabled; rendered output is cached by
// content so a refresh only re-renders the message still streaming in.
// It is not safe for concurrent use.
type MessageRenderer struct {
	theme    *styles.Theme
	width    int
	markdown bool
	glamour  *glamour.TermRenderer
	cache    map[string]string
}

// NewMessageRenderer creates a renderer for a transcript column of width
// cells. If glamour cannot be initialised messages are shown as plain text.
func NewMessageRenderer(theme *styles.Theme, width int, markdown bool) *MessageRenderer {
	r := &MessageRenderer{
		theme:    theme,
		width:    max(width, 20),
		markdown: markdown,
		cache:    make(map[string]string),
	}
	if markdown {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(theme.GlamourStyle()),
			glamour.WithWordWrap(r.bodyWidth()-2),
		)
		if err == nil {
			r.glamour = tr
		}
	}
	return r
}

// Width returns the column width the renderer was built for.
func (r *MessageRenderer) Width() int { return r.width }

// Markdown reports whether glamour rendering is active.
func (r *MessageRenderer) Markdown() bool { return r.glamour != nil }

// body styles draw a left border and one cell of padding
func (r *MessageRenderer) bodyWidth() int {
	return max(r.width-2, 10)
}

// RenderSession renders every message of s, separated by blank lines.
func (r *MessageRenderer) RenderSession(s *model.Session) string {
	if s == nil {
		return r.theme.Empty.Render("No session. Press ctrl+n to start one.")
	}
	if len(s.Messages) == 0 {
		return r.theme.Empty.Render("No messages yet. Type below and press Enter.")
	}
	parts := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		parts = append(parts, r.Render(m))
	}
	return strings.Join(parts, "\n\n")
}

// Render renders one message with its role label.
func (r *MessageRenderer) Render(m model.Message) string {
	var label, body string
	switch m.Role {
	case model.RoleUser:
		label = r.theme.UserLabel.Render(m.Role.DisplayName())
		body = r.theme.UserBody.Width(r.bodyWidth()).Render(m.Content)
	case model.RoleAssistant:
		label = r.theme.AssistantLabel.Render(m.Role.DisplayName())
		body = r.theme.AssistantBody.Width(r.bodyWidth()).Render(r.markdownBody(m.Content))
	default:
		label = r.theme.SystemLabel.Render(m.Role.DisplayName())
		body = r.theme.AssistantBody.Width(r.bodyWidth()).Render(m.Content)
	}
	return label + "\n" + body
}

func (r *MessageRenderer) markdownBody(content string) string {
	if r.glamour == nil || strings.TrimSpace(content) == "" {
		return content
	}
	if out, ok := r.cache[content]; ok {
		return out
	}
	out, err := r.glamour.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	if len(r.cache) >= maxCacheEntries {
		clear(r.cache)
	}
	r.cache[content] = out
	return out
}
