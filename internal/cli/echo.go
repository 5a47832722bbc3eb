// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/session"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

// =============================================================================
// STREAMING ECHO
// =============================================================================

// echo prints the growing assistant reply of one armed session as it is
// folded into the registry. Only the newly added suffix is written.
type echo struct {
	mu      sync.Mutex
	w       io.Writer
	reg     *session.Registry
	id      string
	printed int
	wrote   bool
}

// newEcho creates an echo and hooks it to reg.
func newEcho(reg *session.Registry, w io.Writer) *echo {
	e := &echo{w: w, reg: reg}
	reg.OnChange(e.onChange)
	return e
}

// arm starts echoing replies for id.
func (e *echo) arm(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.id, e.printed, e.wrote = id, 0, false
}

// disarm stops echoing and reports whether anything was written.
func (e *echo) disarm() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.id = ""
	return e.wrote
}

func (e *echo) onChange(c session.Change) {
	if c.Kind != session.ChangeMessage {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == "" || c.ID != e.id {
		return
	}
	s, ok := e.reg.Session(c.ID)
	if !ok {
		return
	}
	last, ok := s.LastMessage()
	if !ok || last.Role != model.RoleAssistant {
		e.printed = 0
		return
	}
	if len(last.Content) < e.printed {
		e.printed = 0
	}
	if delta := last.Content[e.printed:]; delta != "" {
		fmt.Fprint(e.w, delta)
		e.printed = len(last.Content)
		e.wrote = true
	}
}

// =============================================================================
// TURN EXECUTION
// =============================================================================

// turnOptions controls how runTurn presents a reply.
type turnOptions struct {
	// Render prints the finished reply through glamour instead of
	// streaming raw text.
	Render bool
	// Stats prints the stream summary to the error writer.
	Stats bool
	// Theme selects the glamour style.
	Theme styles.Mode
	// Width wraps rendered output.
	Width int
}

// runTurn sends input to sessionID and presents the reply on out.
func runTurn(ctx context.Context, app *App, ec *echo, sessionID, input string, out, errOut io.Writer, opts turnOptions) (ollama.Result, error) {
	turn, err := app.Controller.BeginTo(sessionID, input)
	if err != nil {
		return ollama.Result{}, err
	}
	if !opts.Render {
		ec.arm(sessionID)
	}
	res, err := app.Controller.Stream(ctx, turn)
	wrote := ec.disarm()

	if opts.Render && res.Content != "" {
		fmt.Fprint(out, renderMarkdown(res.Content, opts.Theme, opts.Width))
	} else if wrote {
		fmt.Fprintln(out)
	}

	if err != nil {
		return res, err
	}
	if rerr := res.Err(); rerr != nil {
		return res, rerr
	}
	if res.Detached {
		fmt.Fprintln(errOut, styles.RenderWarning("session was deleted while the reply streamed"))
	}
	if opts.Stats {
		fmt.Fprintln(errOut, styles.RenderMuted(res.Stats.Format()))
	}
	return res, nil
}

// renderMarkdown renders text for the terminal, falling back to the raw
// text when glamour cannot be built.
func renderMarkdown(text string, mode styles.Mode, width int) string {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	style := "dark"
	if !ColorsEnabled() {
		style = "notty"
	} else if !mode.IsDark() {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text + "\n"
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return rendered
}
