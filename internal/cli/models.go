// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

func newModelsCommand(o *rootOptions) *cobra.Command {
	format := formatText
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models installed in Ollama",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatText, formatJSON, formatYAML); err != nil {
				return err
			}
			client := ollama.NewClient(&ollama.ClientConfig{
				BaseURL: o.cfg.Ollama.URL,
				Timeout: o.cfg.RequestTimeout(),
				Logger:  o.log,
			})
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if format != formatText {
				return encode(w, format, models)
			}
			if len(models) == 0 {
				fmt.Fprintln(w, styles.RenderMuted("No models installed. Try `ollama pull llama3`."))
				return nil
			}

			// Mirror the selection the chat commands make.
			selected := models[0].Name
			for _, m := range models {
				if m.Name == o.cfg.Ollama.DefaultModel {
					selected = m.Name
				}
			}
			rows := make([][]string, 0, len(models))
			for _, m := range models {
				marker := ""
				if m.Name == selected {
					marker = "*"
				}
				rows = append(rows, []string{marker, m.Name, m.Details.ParameterSize, m.Details.QuantizationLevel, m.FormatSize()})
			}
			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(styles.Overlay)).
				Headers("", "NAME", "PARAMS", "QUANT", "SIZE").
				Rows(rows...)
			fmt.Fprintln(w, t.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", format, "output format: text, json or yaml")
	return cmd
}
