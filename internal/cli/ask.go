// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type askOptions struct {
	session string
	newOne  bool
	system  string
	render  bool
	stats   bool
}

func newAskCommand(o *rootOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [PROMPT...]",
		Short: "Send one message and stream the reply",
		Long: `Send one message to a session and print the reply as it streams.

The prompt is taken from the arguments. With no arguments, or "-", it is
read from standard input.

The message goes to the active session unless --session or --new is given.
A session is created when none exist.`,
		Example: `  ollama-chat ask "why is the sky blue?"
  git diff | ollama-chat ask --new --system "review this diff"
  ollama-chat ask -s 2 --render "summarise our discussion"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, o, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.session, "session", "s", "", "target session (id, id prefix or 1-based index)")
	f.BoolVarP(&opts.newOne, "new", "n", false, "start a new session")
	f.StringVar(&opts.system, "system", "", "set the session system prompt before sending")
	f.BoolVarP(&opts.render, "render", "r", false, "render the finished reply as markdown")
	f.BoolVar(&opts.stats, "stats", false, "print timing and token counts to stderr")
	cmd.MarkFlagsMutuallyExclusive("session", "new")
	return cmd
}

// readPrompt joins args, or reads stdin for "-" or a piped empty prompt.
func readPrompt(args []string, stdin io.Reader, stdinIsTTY bool) (string, error) {
	prompt := strings.Join(args, " ")
	if prompt == "-" || (prompt == "" && !stdinIsTTY) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", &UsageError{Message: "nothing to send: pass a prompt or pipe one on stdin"}
	}
	return prompt, nil
}

func runAsk(cmd *cobra.Command, o *rootOptions, opts *askOptions, args []string) error {
	prompt, err := readPrompt(args, cmd.InOrStdin(), isTerminal(cmd.InOrStdin()))
	if err != nil {
		return err
	}

	app, err := openApp(o)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	if err := app.prepareModel(ctx, o.model); err != nil {
		return err
	}

	id, err := askTarget(app, opts)
	if err != nil {
		return err
	}
	if opts.system != "" {
		app.Registry.SetSystemPrompt(id, opts.system)
	}
	app.Log.Debug("ask", zap.String("session", id), zap.String("model", app.Controller.Model()))

	ec := newEcho(app.Registry, cmd.OutOrStdout())
	_, err = runTurn(ctx, app, ec, id, prompt, cmd.OutOrStdout(), cmd.ErrOrStderr(), turnOptions{
		Render: opts.render,
		Stats:  opts.stats,
		Theme:  app.themeMode(),
		Width:  TerminalWidth(),
	})
	return err
}

// askTarget picks the session a one-shot message goes to.
func askTarget(app *App, opts *askOptions) (string, error) {
	reg := app.Registry
	switch {
	case opts.newOne:
		return reg.CreateSession(), nil
	case opts.session != "":
		id, err := app.resolveSession(opts.session)
		if err != nil {
			return "", err
		}
		reg.SetActive(id)
		return id, nil
	}
	if id := reg.Active(); id != "" {
		return id, nil
	}
	return reg.CreateSession(), nil
}
