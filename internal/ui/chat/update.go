// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	chatctl "github.com/jasonmcalpin/ollama-chat/internal/chat"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/components"
)

// =============================================================================
// MESSAGES
// =============================================================================

// modelsLoadedMsg reports the outcome of the startup model fetch.
type modelsLoadedMsg struct {
	err error
}

// turnDoneMsg is sent when a reply stream ends, for any reason.
type turnDoneMsg struct {
	turn   *chatctl.Turn
	result ollama.Result
	err    error
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func (m Model) loadModels() tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		return modelsLoadedMsg{err: ctl.LoadModels(ctx)}
	}
}

// streamTurn runs the reply for turn off the UI goroutine. Fragments reach
// the screen through the registry change hook.
func (m Model) streamTurn(turn *chatctl.Turn) tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		res, err := ctl.Stream(ctx, turn)
		return turnDoneMsg{turn: turn, result: res, err: err}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.syncViewport()
		return m, nil

	case refreshMsg:
		m.syncEditors()
		m.syncViewport()
		return m, m.refresh.wait(m.ctx)

	case modelsLoadedMsg:
		m.handleModelsLoaded(msg)
		return m, nil

	case turnDoneMsg:
		m.handleTurnDone(msg)
		m.syncViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m *Model) handleModelsLoaded(msg modelsLoadedMsg) {
	if msg.err != nil {
		m.setError(fmt.Sprintf("could not load models: %s", describeError(msg.err)))
		return
	}
	n := len(m.ctl.Models())
	if n == 0 {
		m.setError("no models installed (try: ollama pull llama3)")
		return
	}
	m.setInfo(fmt.Sprintf("%d models available, using %s", n, m.ctl.Model()))
}

func (m *Model) handleTurnDone(msg turnDoneMsg) {
	id := msg.turn.SessionID
	if m.busy[id]--; m.busy[id] <= 0 {
		delete(m.busy, id)
	}

	switch {
	case msg.err != nil && errors.Is(msg.err, context.Canceled):
	case msg.err != nil:
		m.setError(describeError(msg.err))
	case msg.result.Err() != nil:
		m.setError(msg.result.Err().Error())
	case msg.result.Detached:
		m.setInfo("reply discarded: its session was deleted")
	default:
		m.stats = msg.result.Stats.Format()
		m.clearStatus()
	}
}

// describeError adds a hint for the usual local setup problem.
func describeError(err error) string {
	if ollama.IsNotRunning(err) {
		return err.Error() + " (is `ollama serve` running?)"
	}
	return err.Error()
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	switch m.focus {
	case focusRename:
		return m.handleRenameKey(msg)
	case focusSystem:
		return m.handleSystemKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewSession):
		m.reg.CreateSession()
		m.follow = true
		m.clearStatus()
		m.syncEditors()
		m.syncViewport()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if id := m.reg.Active(); id != "" {
			m.reg.DeleteSession(id)
			m.follow = true
			m.syncEditors()
			m.syncViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		return m.startRename()

	case key.Matches(msg, m.keys.ToggleSystem):
		if m.reg.Active() == "" {
			return m, nil
		}
		m.showSystem = true
		m.focus = focusSystem
		m.input.Blur()
		m.layout()
		m.syncViewport()
		cmd := m.system.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.NextSession):
		m.stepSession(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevSession):
		m.stepSession(-1)
		return m, nil

	case key.Matches(msg, m.keys.ToggleTheme):
		m.toggleTheme()
		return m, nil

	case key.Matches(msg, m.keys.NextModel):
		if name := m.ctl.CycleModel(); name != "" {
			m.setInfo("model: " + name)
		} else {
			m.setError("no models available")
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		m.follow = false
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		m.follow = m.viewport.AtBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a turn for the active session. The input is cleared as
// soon as the user message is recorded; the reply streams in a command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	turn, err := m.ctl.Begin(m.input.Value())
	switch {
	case errors.Is(err, chatctl.ErrEmptyInput):
		return m, nil
	case errors.Is(err, chatctl.ErrNoActiveSession):
		m.setError("no session: press ctrl+n to create one")
		return m, nil
	case errors.Is(err, chatctl.ErrBusy):
		m.setInfo("still replying in this session")
		return m, nil
	case err != nil:
		m.setError(err.Error())
		return m, nil
	}

	m.input.Reset()
	m.busy[turn.SessionID]++
	m.follow = true
	m.clearStatus()
	m.syncViewport()
	m.log.Debug("turn started", zap.String("session", turn.SessionID), zap.String("model", turn.Model))
	return m, m.streamTurn(turn)
}

func (m *Model) stepSession(delta int) {
	ids := m.reg.IDs()
	if len(ids) == 0 {
		return
	}
	cur := 0
	for i, id := range ids {
		if id == m.reg.Active() {
			cur = i
			break
		}
	}
	next := (cur + delta + len(ids)) % len(ids)
	m.reg.SetActive(ids[next])
	m.follow = true
	m.syncEditors()
	m.syncViewport()
}

func (m *Model) toggleTheme() {
	mode := m.theme.Mode.Toggle()
	m.applyMode(mode)
	if m.st != nil && m.themeKey != "" {
		if err := m.st.Save(m.themeKey, string(mode)); err != nil {
			m.log.Warn("failed to save theme preference", zap.Error(err))
		}
	}
	m.syncViewport()
}

// =============================================================================
// EDITORS
// =============================================================================

func (m Model) startRename() (tea.Model, tea.Cmd) {
	s, ok := m.reg.Session(m.reg.Active())
	if !ok {
		return m, nil
	}
	m.focus = focusRename
	m.input.Blur()
	m.rename.SetValue(s.Name)
	m.rename.CursorEnd()
	cmd := m.rename.Focus()
	return m, cmd
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		// A blank name keeps the old one.
		if name := m.rename.Value(); name != "" {
			m.reg.RenameSession(m.reg.Active(), name)
		}
		return m.leaveEditor()
	case key.Matches(msg, m.keys.Leave):
		return m.leaveEditor()
	}
	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

// handleSystemKey edits the active session's system prompt. Every change
// is written through to the registry.
func (m Model) handleSystemKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Leave):
		return m.leaveEditor()
	case key.Matches(msg, m.keys.ToggleSystem):
		m.showSystem = false
		m.layout()
		m.syncViewport()
		return m.leaveEditor()
	}

	before := m.system.Value()
	var cmd tea.Cmd
	m.system, cmd = m.system.Update(msg)
	if after := m.system.Value(); after != before {
		m.reg.SetSystemPrompt(m.reg.Active(), after)
	}
	return m, cmd
}

func (m Model) leaveEditor() (tea.Model, tea.Cmd) {
	m.focus = focusInput
	m.rename.Blur()
	m.system.Blur()
	m.syncEditors()
	cmd := m.input.Focus()
	return m, cmd
}

// updateFocused forwards non-key messages (cursor blink) to the focused
// component.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusRename:
		m.rename, cmd = m.rename.Update(msg)
	case focusSystem:
		m.system, cmd = m.system.Update(msg)
	default:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// SYNC
// =============================================================================

// syncEditors loads the active session's system prompt into the editor
// unless the user is typing in it.
func (m *Model) syncEditors() {
	if m.focus == focusSystem || m.reg == nil {
		return
	}
	s, ok := m.reg.Session(m.reg.Active())
	if !ok {
		m.system.SetValue("")
		return
	}
	if m.system.Value() != s.System {
		m.system.SetValue(s.System)
	}
}

// syncViewport re-renders the active session's transcript.
func (m *Model) syncViewport() {
	if m.reg == nil {
		return
	}
	s, _ := m.reg.Session(m.reg.Active())
	follow := m.follow || m.viewport.AtBottom()
	m.viewport.SetContent(m.renderer.RenderSession(s))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) setError(text string) {
	m.status = components.Status{Text: text, Level: components.LevelError}
}

func (m *Model) setInfo(text string) {
	m.status = components.Status{Text: text, Level: components.LevelInfo}
}

func (m *Model) clearStatus() {
	m.status = components.Status{}
}
