// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	gmutil "github.com/yuin/goldmark/util"

	"github.com/jasonmcalpin/ollama-chat/internal/session"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports sessions to a standalone HTML page with embedded CSS.
// Message content is rendered as markdown with highlighted code blocks; raw
// HTML in messages is dropped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	o := opts.fill()
	return &HTMLExporter{
		options: o,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
				renderer.WithNodeRenderers(gmutil.Prioritized(newCodeRenderer(o.Theme), 100)),
			),
		),
	}
}

// Export converts sessions to HTML format.
func (e *HTMLExporter) Export(sessions []session.Entry) ([]byte, error) {
	if len(sessions) == 0 {
		return nil, ErrNothingToExport
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(title(sessions)))
	sb.WriteString("    <meta name=\"generator\" content=\"ollama-chat\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", e.options.Theme)
	sb.WriteString("    <div class=\"container\">\n")

	for _, s := range sessions {
		if err := e.renderSession(&sb, s); err != nil {
			return nil, err
		}
	}

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>ollama-chat</strong> on %s</p>\n",
		formatTimestamp(e.options.Now()))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderSession(sb *strings.Builder, s session.Entry) error {
	sb.WriteString("        <section class=\"session\">\n")
	sb.WriteString("            <header class=\"header\">\n")
	fmt.Fprintf(sb, "                <h1>%s</h1>\n", html.EscapeString(s.Session.Name))
	if e.options.IncludeMetadata {
		sb.WriteString("                <div class=\"metadata\">\n")
		fmt.Fprintf(sb, "                    <span class=\"meta-item\"><strong>ID:</strong> %s</span>\n", html.EscapeString(s.ID))
		fmt.Fprintf(sb, "                    <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(s.Session.Messages))
		sb.WriteString("                </div>\n")
	}
	sb.WriteString("            </header>\n")

	if sys := strings.TrimSpace(s.Session.System); sys != "" {
		sb.WriteString("            <div class=\"system-prompt\">\n")
		sb.WriteString("                <span class=\"role-label\">[System]</span>\n")
		fmt.Fprintf(sb, "                <pre>%s</pre>\n", html.EscapeString(sys))
		sb.WriteString("            </div>\n")
	}

	sb.WriteString("            <main class=\"conversation\">\n")
	for _, msg := range s.Session.Messages {
		role := msg.Role.String()
		fmt.Fprintf(sb, "                <div class=\"message %s-message\">\n", html.EscapeString(role))
		fmt.Fprintf(sb, "                    <div class=\"role-label\">%s</div>\n", html.EscapeString(roleLabel(role)))
		sb.WriteString("                    <div class=\"message-content\">\n")
		var buf bytes.Buffer
		if err := e.md.Convert([]byte(msg.Content), &buf); err != nil {
			return fmt.Errorf("render message: %w", err)
		}
		sb.Write(buf.Bytes())
		sb.WriteString("                    </div>\n")
		sb.WriteString("                </div>\n")
	}
	sb.WriteString("            </main>\n")
	sb.WriteString("        </section>\n")
	return nil
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        .dark-theme {
            --bg-primary: #1e1e2e;
            --bg-secondary: #313244;
            --text-primary: #cdd6f4;
            --text-muted: #7f849c;
            --border-color: #45475a;
            --user-accent: #89dceb;
            --assistant-accent: #cba6f7;
            --system-accent: #f9e2af;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f4f4f5;
            --text-primary: #1f2937;
            --text-muted: #6b7280;
            --border-color: #e5e5e5;
            --user-accent: #0891b2;
            --assistant-accent: #7c3aed;
            --system-accent: #b45309;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 860px; margin: 0 auto; }
        .session { margin-bottom: 48px; }
        .header { border-bottom: 1px solid var(--border-color); padding-bottom: 12px; margin-bottom: 16px; }
        .metadata { color: var(--text-muted); font-size: 14px; }
        .meta-item { margin-right: 16px; }

        .system-prompt, .message {
            background: var(--bg-secondary);
            border-left: 3px solid var(--border-color);
            border-radius: 6px;
            padding: 12px 16px;
            margin-bottom: 12px;
        }
        .system-prompt { border-left-color: var(--system-accent); }
        .user-message { border-left-color: var(--user-accent); }
        .assistant-message { border-left-color: var(--assistant-accent); }

        .role-label { font-weight: 600; font-size: 13px; color: var(--text-muted); }
        .message-content p { margin: 8px 0; }
        pre { overflow-x: auto; padding: 8px; background: var(--bg-primary); border-radius: 4px; }
        code { font-family: "SF Mono", Monaco, monospace; font-size: 14px; }
        .footer { color: var(--text-muted); font-size: 13px; text-align: center; margin-top: 32px; }
    </style>
`
