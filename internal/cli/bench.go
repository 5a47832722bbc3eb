// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jasonmcalpin/ollama-chat/internal/benchmark"
	"github.com/jasonmcalpin/ollama-chat/internal/config"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

func newBenchCommand(o *rootOptions) *cobra.Command {
	var (
		all    bool
		save   bool
		format = formatText
	)
	cmd := &cobra.Command{
		Use:   "bench [MODEL...]",
		Short: "Time a fixed set of prompts against one or more models",
		Long: `bench sends a small suite of single-turn prompts to each model and
reports time to first token, generation speed and a rough reply score.
Sessions are not touched.

Without arguments the default model is used; --all runs every installed model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatText, formatJSON, formatYAML); err != nil {
				return err
			}
			if all && len(args) > 0 {
				return &UsageError{Message: "--all cannot be combined with model names"}
			}
			client := ollama.NewClient(&ollama.ClientConfig{
				BaseURL: o.cfg.Ollama.URL,
				Timeout: o.cfg.RequestTimeout(),
				Logger:  o.log,
			})

			models := args
			if len(models) == 0 {
				installed, err := client.ListModels(cmd.Context())
				if err != nil {
					return err
				}
				models = benchTargets(ollama.ModelNames(installed), o.cfg.Ollama.DefaultModel, all)
				if len(models) == 0 {
					return &NotFoundError{Kind: "model", Ref: "any installed model"}
				}
			}

			errOut := cmd.ErrOrStderr()
			runner := benchmark.NewRunner(client, o.log)
			if format == formatText {
				runner.OnCase = func(model string, cr benchmark.CaseResult) {
					line := fmt.Sprintf("%s / %s  %s", model, cr.Name, styles.RenderMuted(cr.Stats.Format()))
					fmt.Fprintln(errOut, styles.RenderStatus(cr.Status == benchmark.StatusPassed, line))
				}
			}
			cmpr, runErr := runner.RunComparison(cmd.Context(), models, benchmark.StandardCases())

			if save {
				dir, err := config.ConfigDir()
				if err != nil {
					return &ConfigError{Err: err}
				}
				path, err := cmpr.Save(filepath.Join(dir, "benchmarks"))
				if err != nil {
					return err
				}
				fmt.Fprintln(errOut, styles.RenderMuted("saved "+path))
			}

			w := cmd.OutOrStdout()
			if format != formatText {
				if err := encode(w, format, cmpr); err != nil {
					return err
				}
				return runErr
			}
			rows := make([][]string, 0, len(cmpr.Results))
			for _, r := range cmpr.Results {
				rows = append(rows, []string{
					r.Model,
					fmt.Sprintf("%d/%d", r.Passed, r.Passed+r.Failed),
					benchmark.FormatTTFT(r.AvgTTFT),
					benchmark.FormatTokensPerSec(r.AvgTokensPerSec),
					fmt.Sprintf("%.0f", r.AvgScore),
				})
			}
			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(styles.Overlay)).
				Headers("MODEL", "PASSED", "TTFT", "SPEED", "SCORE").
				Rows(rows...)
			fmt.Fprintln(w, t.String())
			if best := cmpr.Fastest(); best != nil && len(cmpr.Results) > 1 {
				fmt.Fprintf(w, "Fastest: %s (%s)\n", best.Model, benchmark.FormatTokensPerSec(best.AvgTokensPerSec))
			}
			return runErr
		},
	}
	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "benchmark every installed model")
	f.BoolVar(&save, "save", false, "write the results as JSON under the config directory")
	f.StringVarP(&format, "format", "f", format, "output format: text, json or yaml")
	return cmd
}

// benchTargets picks the models to run when none were named: every model
// with all, otherwise the default model when installed, else the first.
func benchTargets(installed []string, defaultModel string, all bool) []string {
	if all || len(installed) == 0 {
		return installed
	}
	for _, name := range installed {
		if name == defaultModel {
			return []string{name}
		}
	}
	return installed[:1]
}
