// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	uichat "github.com/jasonmcalpin/ollama-chat/internal/ui/chat"
)

// runTUI starts the full-screen interface.
func runTUI(cmd *cobra.Command, o *rootOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return &UsageError{Message: "the interactive UI needs a terminal; use `ollama-chat ask` or `ollama-chat chat` instead"}
	}

	app, err := openApp(o)
	if err != nil {
		return err
	}
	defer app.Close()
	app.ensureServer(cmd.Context())

	m := uichat.New(uichat.Options{
		Registry:   app.Registry,
		Controller: app.Controller,
		Store:      app.Store,
		ThemeKey:   app.Config.Storage.ThemeKey,
		UI:         app.Config.UI,
		Logger:     app.Log,
	})
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		app.Log.Error("ui exited", zap.Error(err))
		return err
	}
	return nil
}
