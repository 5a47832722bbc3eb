// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jasonmcalpin/ollama-chat/internal/config"
	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
	"github.com/jasonmcalpin/ollama-chat/internal/util"
)

// historyFileName lives in the config directory.
const historyFileName = "chat_history"

func newChatCommand(o *rootOptions) *cobra.Command {
	var (
		sessionRef string
		render     bool
		stats      bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Line-mode chat with slash commands",
		Long: `Chat line by line without the full-screen UI. Replies stream as they
arrive. Ctrl+C cancels a reply in progress; Ctrl+C at the prompt or Ctrl+D
exits. Type /help for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(o)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.prepareModel(cmd.Context(), o.model); err != nil {
				// Still usable: /model can pick one later.
				fmt.Fprintln(cmd.ErrOrStderr(), styles.RenderWarning(describe(err)))
			}

			r := newREPL(app, cmd.OutOrStdout(), cmd.ErrOrStderr(), turnOptions{
				Render: render,
				Stats:  stats,
				Theme:  app.themeMode(),
				Width:  TerminalWidth(),
			})
			if sessionRef != "" {
				if _, err := r.exec(cmd.Context(), "/switch "+sessionRef); err != nil {
					return err
				}
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&sessionRef, "session", "s", "", "session to start in")
	cmd.Flags().BoolVarP(&render, "render", "r", false, "render finished replies as markdown")
	cmd.Flags().BoolVar(&stats, "stats", false, "print timing and token counts after each reply")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

// repl executes chat lines and slash commands against an App.
type repl struct {
	app    *App
	ec     *echo
	out    io.Writer
	errOut io.Writer
	opts   turnOptions
}

func newREPL(app *App, out, errOut io.Writer, opts turnOptions) *repl {
	return &repl{
		app:    app,
		ec:     newEcho(app.Registry, out),
		out:    out,
		errOut: errOut,
		opts:   opts,
	}
}

// prompt shows the active session name.
func (r *repl) prompt() string {
	id := r.app.Registry.Active()
	if s, ok := r.app.Registry.Session(id); ok {
		return util.TruncateWidth(s.Name, 24) + "> "
	}
	return "> "
}

// run reads lines until EOF, Ctrl+C at the prompt, or /quit.
func (r *repl) run(ctx context.Context) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	history := historyPath()
	if f, err := os.Open(history); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(line, history, r.app.Log)

	fmt.Fprintln(r.out, styles.RenderMuted("Type /help for commands, Ctrl+D to exit."))

	// Interrupts cancel single turns, never the loop.
	base := context.WithoutCancel(ctx)
	for {
		input, err := line.Prompt(r.prompt())
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(r.out)
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		turnCtx, stop := signal.NotifyContext(base, os.Interrupt)
		quit, err := r.exec(turnCtx, input)
		canceled := turnCtx.Err() != nil
		stop()

		switch {
		case canceled:
			fmt.Fprintln(r.errOut, styles.RenderWarning("cancelled"))
		case err != nil:
			fmt.Fprintln(r.errOut, styles.RenderError(describe(err)))
		}
		if quit {
			return nil
		}
	}
}

func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, historyFileName)
}

func saveHistory(line *liner.State, path string, log *zap.Logger) {
	var b strings.Builder
	if _, err := line.WriteHistory(&b); err != nil {
		return
	}
	if err := util.WriteFileAtomic(path, []byte(b.String()), 0o600, 0o700); err != nil {
		log.Debug("failed to save chat history", zap.Error(err))
	}
}

// describe adds a hint to connection failures.
func describe(err error) string {
	if ExitCode(err) == ExitNetworkError {
		return err.Error() + " (is `ollama serve` running?)"
	}
	return err.Error()
}

// exec runs one input line. It reports quit=true for /quit.
func (r *repl) exec(ctx context.Context, input string) (quit bool, err error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return false, nil
	case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
		return true, nil
	case strings.HasPrefix(input, "/"):
		name, arg, _ := strings.Cut(input[1:], " ")
		return r.command(ctx, strings.ToLower(name), strings.TrimSpace(arg))
	}
	return false, r.send(ctx, input)
}

func (r *repl) send(ctx context.Context, input string) error {
	reg := r.app.Registry
	id := reg.Active()
	if id == "" {
		id = reg.CreateSession()
	}
	_, err := runTurn(ctx, r.app, r.ec, id, input, r.out, r.errOut, r.opts)
	return err
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const replHelp = `Commands:
  /new [NAME]       start a new session
  /list             list sessions
  /switch REF       switch session (index, id or id prefix)
  /rename NAME      rename the current session
  /system [TEXT]    show or set the system prompt ("-" clears it)
  /history          show the current session
  /delete [REF]     delete a session (default: current)
  /model [NAME]     show or select the model
  /models           list installed models
  /help             show this help
  /quit             exit`

func (r *repl) command(ctx context.Context, name, arg string) (bool, error) {
	reg := r.app.Registry
	ctl := r.app.Controller

	switch name {
	case "quit", "exit", "q":
		return true, nil

	case "help", "h", "?":
		fmt.Fprintln(r.out, replHelp)

	case "new":
		id := reg.CreateSession()
		if arg != "" {
			reg.RenameSession(id, arg)
		}
		s, _ := reg.Session(id)
		fmt.Fprintln(r.out, styles.RenderSuccess("created "+s.Name))

	case "list", "ls":
		writeSessionList(r.out, reg.Sessions(), reg.Active())

	case "switch", "s":
		if arg == "" {
			return false, &UsageError{Message: "usage: /switch REF"}
		}
		id, err := r.app.resolveSession(arg)
		if err != nil {
			return false, err
		}
		reg.SetActive(id)
		s, _ := reg.Session(id)
		fmt.Fprintln(r.out, styles.RenderSuccess("switched to "+s.Name))

	case "rename":
		id := reg.Active()
		if id == "" {
			return false, errNoSession
		}
		if arg == "" {
			return false, &UsageError{Message: "usage: /rename NAME"}
		}
		reg.RenameSession(id, arg)
		fmt.Fprintln(r.out, styles.RenderSuccess("renamed to "+arg))

	case "system":
		id := reg.Active()
		s, ok := reg.Session(id)
		if !ok {
			return false, errNoSession
		}
		switch arg {
		case "":
			if strings.TrimSpace(s.System) == "" {
				fmt.Fprintln(r.out, styles.RenderMuted("(no system prompt)"))
			} else {
				fmt.Fprintln(r.out, s.System)
			}
		case "-":
			reg.SetSystemPrompt(id, "")
			fmt.Fprintln(r.out, styles.RenderSuccess("system prompt cleared"))
		default:
			reg.SetSystemPrompt(id, arg)
			fmt.Fprintln(r.out, styles.RenderSuccess("system prompt set"))
		}

	case "history":
		s, ok := reg.Session(reg.Active())
		if !ok {
			return false, errNoSession
		}
		writeTranscript(r.out, s)

	case "delete", "rm":
		id := reg.Active()
		if arg != "" {
			var err error
			if id, err = r.app.resolveSession(arg); err != nil {
				return false, err
			}
		}
		s, ok := reg.Session(id)
		if !ok {
			return false, errNoSession
		}
		reg.DeleteSession(id)
		fmt.Fprintln(r.out, styles.RenderSuccess("deleted "+s.Name))

	case "model":
		if arg == "" {
			current := ctl.Model()
			if current == "" {
				current = "(none)"
			}
			fmt.Fprintln(r.out, current)
			return false, nil
		}
		if err := ctl.SelectModel(arg); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, styles.RenderSuccess("using "+arg))

	case "models":
		if err := ctl.LoadModels(ctx); err != nil {
			return false, err
		}
		current := ctl.Model()
		for _, m := range ctl.Models() {
			marker := "  "
			if m == current {
				marker = "* "
			}
			fmt.Fprintln(r.out, marker+m)
		}

	default:
		return false, &UsageError{Message: fmt.Sprintf("unknown command /%s (try /help)", name)}
	}
	return false, nil
}

var errNoSession = &NotFoundError{Kind: "session", Ref: "(none active; use /new)"}

// writeTranscript prints a session as plain labelled text.
func writeTranscript(w io.Writer, s *model.Session) {
	if strings.TrimSpace(s.System) != "" {
		fmt.Fprintf(w, "[%s] %s\n\n", model.RoleSystem.DisplayName(), s.System)
	}
	if len(s.Messages) == 0 {
		fmt.Fprintln(w, styles.RenderMuted("(no messages)"))
		return
	}
	for _, m := range s.Messages {
		fmt.Fprintf(w, "[%s] %s\n\n", m.Role.DisplayName(), m.Content)
	}
}
