// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jasonmcalpin/ollama-chat/internal/session"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports sessions to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	return &MarkdownExporter{options: opts.fill()}
}

// frontMatter is the YAML header of a Markdown export.
type frontMatter struct {
	Title     string `yaml:"title"`
	Sessions  int    `yaml:"sessions"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts sessions to Markdown format.
func (e *MarkdownExporter) Export(sessions []session.Entry) ([]byte, error) {
	if len(sessions) == 0 {
		return nil, ErrNothingToExport
	}
	now := e.options.Now()

	var sb strings.Builder

	if e.options.IncludeMetadata {
		fm := frontMatter{
			Title:     title(sessions),
			Sessions:  len(sessions),
			Messages:  countMessages(sessions),
			Exported:  now.Format(time.RFC3339),
			Generator: "ollama-chat",
		}
		data, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(data)
		sb.WriteString("---\n\n")
	}

	for i, s := range sessions {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		e.writeSession(&sb, s)
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from ollama-chat on %s*\n", formatTimestamp(now))

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeSession(sb *strings.Builder, s session.Entry) {
	fmt.Fprintf(sb, "# %s\n\n", escapeMarkdown(s.Session.Name))
	if e.options.IncludeMetadata {
		fmt.Fprintf(sb, "- **ID**: `%s`\n", s.ID)
		fmt.Fprintf(sb, "- **Messages**: %d\n\n", len(s.Session.Messages))
	}
	if sys := strings.TrimSpace(s.Session.System); sys != "" {
		sb.WriteString("> **System prompt**\n>\n")
		for _, line := range strings.Split(sys, "\n") {
			fmt.Fprintf(sb, "> %s\n", line)
		}
		sb.WriteString("\n")
	}
	if len(s.Session.Messages) == 0 {
		sb.WriteString("*No messages.*\n")
		return
	}
	for _, msg := range s.Session.Messages {
		fmt.Fprintf(sb, "### %s\n\n", roleLabel(msg.Role.String()))
		// Content is already markdown.
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
	}
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// HELPERS
// =============================================================================

func title(sessions []session.Entry) string {
	if len(sessions) == 1 {
		return sessions[0].Session.Name
	}
	return fmt.Sprintf("%d sessions", len(sessions))
}

func countMessages(sessions []session.Entry) int {
	n := 0
	for _, s := range sessions {
		n += len(s.Session.Messages)
	}
	return n
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	return strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	).Replace(s)
}
