// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jasonmcalpin/ollama-chat/internal/config"
	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

// check is one doctor result line.
type check struct {
	Name   string
	OK     bool
	Detail string
}

// errDoctorFailed reports that at least one check failed.
var errDoctorFailed = errors.New("some checks failed")

func newDoctorCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage and the Ollama server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runChecks(cmd.Context(), o)
			w := cmd.OutOrStdout()
			failed := false
			for _, c := range checks {
				fmt.Fprintln(w, styles.RenderStatus(c.OK, fmt.Sprintf("%-8s %s", c.Name, c.Detail)))
				failed = failed || !c.OK
			}
			if failed {
				return errDoctorFailed
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, o *rootOptions) []check {
	cfg := o.cfg
	var checks []check

	// Config
	path := o.configPath
	if path == "" {
		path, _ = config.ConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		checks = append(checks, check{"config", true, path})
	} else {
		checks = append(checks, check{"config", true, "defaults (no " + path + ")"})
	}

	// Storage
	st, err := openStore(cfg)
	if err != nil {
		checks = append(checks, check{"storage", false, err.Error()})
	} else {
		raw, ok, err := st.Load(cfg.Storage.Key)
		switch {
		case err != nil:
			checks = append(checks, check{"storage", false, err.Error()})
		case !ok:
			checks = append(checks, check{"storage", true, fmt.Sprintf("%s %s (no sessions)", cfg.Storage.Backend, cfg.Storage.Path)})
		default:
			sessions, perr := model.ParseSessionStore(raw)
			if perr != nil {
				checks = append(checks, check{"storage", false, "stored sessions unreadable: " + perr.Error()})
			} else {
				checks = append(checks, check{"storage", true, fmt.Sprintf("%s %s (%d sessions)", cfg.Storage.Backend, cfg.Storage.Path, sessions.Len())})
			}
		}
		st.Close()
	}

	// Ollama
	client := ollama.NewClient(&ollama.ClientConfig{
		BaseURL: cfg.Ollama.URL,
		Timeout: cfg.RequestTimeout(),
		Logger:  o.log,
	})
	if cfg.Ollama.AutoStart {
		if err := client.EnsureRunning(ctx); err != nil {
			checks = append(checks, check{"autostart", false, err.Error()})
		}
	}
	if err := client.CheckRunning(ctx); err != nil {
		return append(checks, check{"ollama", false, describe(err)})
	}
	version, err := client.Version(ctx)
	if err != nil {
		version = "unknown version"
	}
	checks = append(checks, check{"ollama", true, client.BaseURL() + " (" + version + ")"})

	models, err := client.ListModels(ctx)
	switch {
	case err != nil:
		checks = append(checks, check{"models", false, err.Error()})
	case len(models) == 0:
		checks = append(checks, check{"models", false, "none installed; try `ollama pull llama3`"})
	default:
		names := ollama.ModelNames(models)
		detail := fmt.Sprintf("%d installed", len(names))
		ok := true
		if want := cfg.Ollama.DefaultModel; want != "" {
			if slices.Contains(names, want) {
				detail += ", default " + want + " present"
			} else {
				detail += ", default " + want + " missing"
				ok = false
			}
		}
		checks = append(checks, check{"models", ok, detail})
	}
	return checks
}
