// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jasonmcalpin/ollama-chat/internal/config"
	"github.com/jasonmcalpin/ollama-chat/internal/logging"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

// =============================================================================
// ROOT COMMAND
// =============================================================================

// rootOptions carries global flags and the state built from them before
// any subcommand runs.
type rootOptions struct {
	configPath string
	url        string
	model      string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "ollama-chat",
		Short: "Multi-session chat with local Ollama models",
		Long: `ollama-chat keeps any number of independent chat sessions with a
local Ollama server. Sessions, their system prompts and the UI theme are
saved between runs.

Run without arguments to start the terminal UI.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The TUI owns the terminal: never log to stderr there.
			return o.load(o.verbose && cmd.Parent() != nil)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.log != nil {
				_ = o.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, o)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "config file (default ~/.ollama-chat/config.toml)")
	pf.StringVar(&o.url, "url", "", "Ollama base URL (overrides config)")
	pf.StringVarP(&o.model, "model", "m", "", "model to use (overrides config)")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newAskCommand(o),
		newChatCommand(o),
		newSessionsCommand(o),
		newModelsCommand(o),
		newBenchCommand(o),
		newMigrateCommand(o),
		newDoctorCommand(o),
		newConfigCommand(o),
	)
	return root
}

// load reads the config, applies flag overrides and builds the logger.
func (o *rootOptions) load(logToStderr bool) error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return &ConfigError{Err: err}
	}

	if o.url != "" {
		cfg.Ollama.URL = o.url
	}
	if o.model != "" {
		cfg.Ollama.DefaultModel = o.model
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	log, err := logging.New(cfg.Log, logToStderr)
	if err != nil {
		return &ConfigError{Err: err}
	}
	o.cfg = cfg
	o.log = log
	o.log.Debug("config loaded",
		zap.String("url", cfg.Ollama.URL),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("path", cfg.Storage.Path))
	return nil
}

// =============================================================================
// ENTRY POINT
// =============================================================================

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ConfigureColors()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
		return ExitCode(err)
	}
	return ExitSuccess
}
