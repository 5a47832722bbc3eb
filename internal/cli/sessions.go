// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jasonmcalpin/ollama-chat/internal/export"
	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/session"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
	"github.com/jasonmcalpin/ollama-chat/internal/util"
)

// =============================================================================
// OUTPUT FORMATS
// =============================================================================

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return &UsageError{Message: fmt.Sprintf("unsupported format %q (want %s)", format, strings.Join(allowed, ", "))}
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// =============================================================================
// SESSIONS COMMAND
// =============================================================================

func newSessionsCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "s"},
		Short:   "List and manage saved sessions",
		Long: `List and manage saved sessions.

Sessions are referred to by 1-based index (as shown by "sessions list"),
full id, or a unique id prefix.`,
	}
	cmd.AddCommand(
		newSessionsListCommand(o),
		newSessionsShowCommand(o),
		newSessionsNewCommand(o),
		newSessionsRenameCommand(o),
		newSessionsSystemCommand(o),
		newSessionsDeleteCommand(o),
		newSessionsExportCommand(o),
	)
	return cmd
}

// withApp opens the App for the duration of fn.
func withApp(o *rootOptions, fn func(app *App) error) error {
	app, err := openApp(o)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func newSessionsListCommand(o *rootOptions) *cobra.Command {
	format := formatText
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatText, formatJSON, formatYAML); err != nil {
				return err
			}
			return withApp(o, func(app *App) error {
				entries := app.Registry.Sessions()
				if format == formatText {
					writeSessionList(cmd.OutOrStdout(), entries, app.Registry.Active())
					return nil
				}
				return encode(cmd.OutOrStdout(), format, export.Documents(entries))
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", format, "output format: text, json or yaml")
	return cmd
}

// writeSessionList prints sessions as a table, marking the active one.
func writeSessionList(w io.Writer, entries []session.Entry, active string) {
	if len(entries) == 0 {
		fmt.Fprintln(w, styles.RenderMuted("No sessions yet."))
		return
	}
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		marker := ""
		if e.ID == active {
			marker = "*"
		}
		last := ""
		if m, ok := e.Session.LastMessage(); ok {
			last = m.Preview(40)
		}
		rows = append(rows, []string{
			strconv.Itoa(i+1) + marker,
			util.TruncateWidth(e.Session.Name, 28),
			shortID(e.ID),
			strconv.Itoa(len(e.Session.Messages)),
			last,
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.Overlay)).
		Headers("#", "NAME", "ID", "MSGS", "LAST").
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

// shortID abbreviates an id for display; any unique prefix resolves.
func shortID(id string) string {
	if len(id) <= 13 {
		return id
	}
	return id[:13]
}

func newSessionsShowCommand(o *rootOptions) *cobra.Command {
	var (
		format = formatText
		render bool
	)
	cmd := &cobra.Command{
		Use:   "show REF",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatText, formatJSON, formatYAML); err != nil {
				return err
			}
			return withApp(o, func(app *App) error {
				id, err := app.resolveSession(args[0])
				if err != nil {
					return err
				}
				s, _ := app.Registry.Session(id)
				w := cmd.OutOrStdout()
				switch {
				case format != formatText:
					return encode(w, format, export.NewDocument(session.Entry{ID: id, Session: s}))
				case render:
					fmt.Fprint(w, renderMarkdown(transcriptMarkdown(s), app.themeMode(), TerminalWidth()))
				default:
					fmt.Fprintln(w, styles.RenderMuted(s.Name+" ("+id+")"))
					writeTranscript(w, s)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", format, "output format: text, json or yaml")
	cmd.Flags().BoolVarP(&render, "render", "r", false, "render the transcript as markdown")
	return cmd
}

// transcriptMarkdown lays a session out as a markdown document.
func transcriptMarkdown(s *model.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Name)
	if strings.TrimSpace(s.System) != "" {
		fmt.Fprintf(&b, "> **%s:** %s\n\n", model.RoleSystem.DisplayName(), s.System)
	}
	for _, m := range s.Messages {
		fmt.Fprintf(&b, "**%s:**\n\n%s\n\n", m.Role.DisplayName(), m.Content)
	}
	return b.String()
}

func newSessionsNewCommand(o *rootOptions) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "new [NAME]",
		Short: "Create a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(app *App) error {
				reg := app.Registry
				id := reg.CreateSession()
				if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
					reg.RenameSession(id, args[0])
				}
				if system != "" {
					reg.SetSystemPrompt(id, system)
				}
				s, _ := reg.Session(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styles.RenderSuccess("created "+s.Name), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "system prompt for the new session")
	return cmd
}

func newSessionsRenameCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename REF NAME",
		Short: "Rename a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(strings.Join(args[1:], " "))
			if name == "" {
				return &UsageError{Message: "name must not be blank"}
			}
			return withApp(o, func(app *App) error {
				id, err := app.resolveSession(args[0])
				if err != nil {
					return err
				}
				app.Registry.RenameSession(id, name)
				fmt.Fprintln(cmd.OutOrStdout(), styles.RenderSuccess("renamed to "+name))
				return nil
			})
		},
	}
}

func newSessionsSystemCommand(o *rootOptions) *cobra.Command {
	var clearIt bool
	cmd := &cobra.Command{
		Use:   "system REF [TEXT]",
		Short: "Show or set a session's system prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(app *App) error {
				id, err := app.resolveSession(args[0])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				switch {
				case clearIt:
					app.Registry.SetSystemPrompt(id, "")
					fmt.Fprintln(w, styles.RenderSuccess("system prompt cleared"))
				case len(args) > 1:
					app.Registry.SetSystemPrompt(id, strings.Join(args[1:], " "))
					fmt.Fprintln(w, styles.RenderSuccess("system prompt set"))
				default:
					s, _ := app.Registry.Session(id)
					fmt.Fprintln(w, s.System)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearIt, "clear", false, "remove the system prompt")
	return cmd
}

func newSessionsDeleteCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete REF...",
		Aliases: []string{"rm"},
		Short:   "Delete sessions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(app *App) error {
				// Resolve everything first so indexes refer to the list
				// the user saw.
				ids := make([]string, 0, len(args))
				for _, ref := range args {
					id, err := app.resolveSession(ref)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				for _, id := range ids {
					s, ok := app.Registry.Session(id)
					if !ok {
						continue
					}
					app.Registry.DeleteSession(id)
					fmt.Fprintln(cmd.OutOrStdout(), styles.RenderSuccess("deleted "+s.Name))
				}
				return nil
			})
		},
	}
}

func newSessionsExportCommand(o *rootOptions) *cobra.Command {
	var (
		format   = string(export.FormatJSON)
		output   string
		dir      string
		noHeader bool
	)
	cmd := &cobra.Command{
		Use:   "export [REF...]",
		Short: "Export sessions",
		Long: `Export all sessions, or the ones named.

Formats:
  json      the stored document (an object keyed by session id)
  yaml      a list of sessions for reading and diffing
  markdown  one section per session
  html      a standalone page`,
		Example: `  ollama-chat sessions export > backup.json
  ollama-chat sessions export 2 --format markdown --dir ~/notes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			if output != "" && dir != "" {
				return &UsageError{Message: "--output and --dir are mutually exclusive"}
			}
			return withApp(o, func(app *App) error {
				entries, err := selectSessions(app, args)
				if err != nil {
					return err
				}
				exp, err := export.New(f, &export.Options{
					IncludeMetadata: !noHeader,
					Theme:           string(app.themeMode()),
				})
				if err != nil {
					return err
				}

				if dir != "" {
					path, err := export.ExportToFile(entries, exp, dir, time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.ErrOrStderr(), styles.RenderSuccess(fmt.Sprintf("exported %d sessions to %s", len(entries), path)))
					return nil
				}

				data, err := exp.Export(entries)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := util.WriteFileAtomic(output, data, 0o600, 0o700); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), styles.RenderSuccess(fmt.Sprintf("exported %d sessions to %s", len(entries), output)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", format, "output format: json, yaml, markdown or html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().StringVar(&dir, "dir", "", "write a timestamped file into this directory")
	cmd.Flags().BoolVar(&noHeader, "no-metadata", false, "omit metadata headers (markdown, html)")
	return cmd
}

// selectSessions resolves refs in order, or returns every session.
func selectSessions(app *App, refs []string) ([]session.Entry, error) {
	if len(refs) == 0 {
		entries := app.Registry.Sessions()
		if len(entries) == 0 {
			return nil, export.ErrNothingToExport
		}
		return entries, nil
	}
	entries := make([]session.Entry, 0, len(refs))
	for _, ref := range refs {
		id, err := app.resolveSession(ref)
		if err != nil {
			return nil, err
		}
		s, _ := app.Registry.Session(id)
		entries = append(entries, session.Entry{ID: id, Session: s})
	}
	return entries, nil
}
