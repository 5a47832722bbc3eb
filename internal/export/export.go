// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jasonmcalpin/ollama-chat/internal/session"
	"github.com/jasonmcalpin/ollama-chat/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for session exporters.
type Exporter interface {
	// Export converts sessions, in order, to the target format.
	Export(sessions []session.Entry) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatJSON, FormatYAML, FormatMarkdown, FormatHTML}

// ParseFormat accepts a format name or a common alias ("md", "yml", "htm").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported export format: %s", s)
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a metadata header (front matter, counts).
	IncludeMetadata bool

	// Theme for HTML export ("light" or "dark").
	// Default: "dark"
	Theme string

	// Now stamps the export (default: time.Now).
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		Theme:           "dark",
		Now:             time.Now,
	}
}

func (o *Options) fill() *Options {
	if o == nil {
		return DefaultOptions()
	}
	cp := *o
	if cp.Theme != "light" {
		cp.Theme = "dark"
	}
	if cp.Now == nil {
		cp.Now = time.Now
	}
	return &cp
}

// New returns the exporter for format.
func New(format Format, opts *Options) (Exporter, error) {
	switch format {
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatYAML:
		return NewYAMLExporter(), nil
	case FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatHTML:
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("unsupported export format: %s", format)
}

// ErrNothingToExport is returned for an empty selection.
var ErrNothingToExport = errors.New("no sessions to export")

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile writes the export into dir and returns the file path. The
// name is derived from the single exported session, or "sessions".
func ExportToFile(sessions []session.Entry, exporter Exporter, dir string, now time.Time) (string, error) {
	content, err := exporter.Export(sessions)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	base := "sessions"
	if len(sessions) == 1 {
		base = sessions[0].Session.Name
	}
	filename := fmt.Sprintf("ollama-chat_%s_%s%s",
		sanitizeFilename(base),
		now.Format("20060102_150405"),
		exporter.FileExtension(),
	)
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, filename)
	if err := util.WriteFileAtomic(path, content, 0o600, 0o755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "session"
	}
	return string(result)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("January 2, 2006 at 3:04 PM")
}

// roleLabel returns the display label for a message role.
func roleLabel(role string) string {
	switch role {
	case "user":
		return "[You]"
	case "assistant":
		return "[AI]"
	case "system":
		return "[System]"
	case "":
		return "Unknown"
	default:
		runes := []rune(role)
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}
