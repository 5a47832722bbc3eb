// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/session"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes the stored document form: one object keyed by session
// id, in order. Its output can be saved back under the sessions key as is.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export converts sessions to the stored JSON document.
func (e *JSONExporter) Export(sessions []session.Entry) ([]byte, error) {
	st := model.NewSessionStore()
	for _, s := range sessions {
		st.Set(s.ID, s.Session)
	}
	raw, err := st.Encode()
	if err != nil {
		return nil, err
	}
	return []byte(raw + "\n"), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// =============================================================================
// YAML EXPORTER
// =============================================================================

// Document is the portable form of one session used by YAML exports.
type Document struct {
	ID       string          `json:"id" yaml:"id"`
	Name     string          `json:"name" yaml:"name"`
	System   string          `json:"system" yaml:"system"`
	Messages []model.Message `json:"messages" yaml:"messages"`
}

// NewDocument converts a registry entry.
func NewDocument(e session.Entry) Document {
	return Document{
		ID:       e.ID,
		Name:     e.Session.Name,
		System:   e.Session.System,
		Messages: e.Session.Messages,
	}
}

// Documents converts entries in order.
func Documents(entries []session.Entry) []Document {
	out := make([]Document, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewDocument(e))
	}
	return out
}

// YAMLExporter writes a list of Documents.
type YAMLExporter struct{}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter() *YAMLExporter {
	return &YAMLExporter{}
}

// Export converts sessions to a YAML list.
func (e *YAMLExporter) Export(sessions []session.Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Documents(sessions)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}
