// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	chatctl "github.com/jasonmcalpin/ollama-chat/internal/chat"
	"github.com/jasonmcalpin/ollama-chat/internal/config"
	"github.com/jasonmcalpin/ollama-chat/internal/session"
	"github.com/jasonmcalpin/ollama-chat/internal/store"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/components"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires the model to the rest of the application.
type Options struct {
	Registry   *session.Registry
	Controller *chatctl.Controller

	// Store and ThemeKey persist the theme preference. A nil Store keeps
	// the preference for this run only.
	Store    store.Store
	ThemeKey string

	UI     config.UIConfig
	Logger *zap.Logger

	// DetectMode resolves the "auto" theme (default: ask the terminal).
	DetectMode func() styles.Mode
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// focus is the component receiving key input.
type focus int

const (
	focusInput focus = iota
	focusSystem
	focusRename
)

const (
	headerHeight      = 1
	statusHeight      = 1
	inputHeight       = 3
	systemHeight      = 3
	minSidebarWidth   = 18
	maxSidebarWidth   = 32
	defaultModelWidth = 80
)

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	reg      *session.Registry
	ctl      *chatctl.Controller
	st       store.Store
	themeKey string
	ui       config.UIConfig
	log      *zap.Logger

	refresh *refresher
	keys    KeyMap

	theme      *styles.Theme
	renderer   *components.MessageRenderer
	viewport   viewport.Model
	input      textarea.Model
	system     textarea.Model
	rename     textinput.Model
	focus      focus
	showSystem bool
	follow     bool

	// busy counts in-flight turns per session id.
	busy map[string]int

	status components.Status
	stats  string

	width, height int
	sidebarWidth  int
	ready         bool
}

// New creates the chat model and subscribes it to registry changes.
func New(opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		ctx:      ctx,
		cancel:   cancel,
		reg:      opts.Registry,
		ctl:      opts.Controller,
		st:       opts.Store,
		themeKey: opts.ThemeKey,
		ui:       opts.UI,
		log:      log.Named("ui"),
		refresh:  newRefresher(opts.UI.RefreshPerSecond),
		keys:     DefaultKeyMap(),
		busy:     make(map[string]int),
		follow:   true,
		width:    defaultModelWidth,
	}

	m.input = textarea.New()
	m.input.Placeholder = "Type a message..."
	m.input.ShowLineNumbers = false
	m.input.CharLimit = 0
	m.input.SetHeight(inputHeight)
	m.input.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	m.input.Focus()

	m.system = textarea.New()
	m.system.Placeholder = "System prompt for this session"
	m.system.ShowLineNumbers = false
	m.system.CharLimit = 0
	m.system.SetHeight(systemHeight)

	m.rename = textinput.New()
	m.rename.Prompt = "Rename: "
	m.rename.CharLimit = 120

	m.viewport = viewport.New(defaultModelWidth, 20)

	m.applyMode(m.startMode(opts.DetectMode))

	if m.reg != nil {
		r := m.refresh
		m.reg.OnChange(func(session.Change) { r.notify() })
	}
	m.syncEditors()
	return m
}

// startMode resolves the theme from config, the stored preference and the
// terminal.
func (m Model) startMode(detect func() styles.Mode) styles.Mode {
	var stored string
	if m.st != nil && m.themeKey != "" {
		v, ok, err := m.st.Load(m.themeKey)
		switch {
		case err != nil:
			m.log.Warn("failed to load theme preference", zap.Error(err))
		case ok:
			stored = v
		}
	}
	return styles.ResolveMode(m.ui.Theme, stored, detect)
}

// applyMode rebuilds the theme and the message renderer.
func (m *Model) applyMode(mode styles.Mode) {
	m.theme = styles.NewTheme(mode)
	m.renderer = components.NewMessageRenderer(m.theme, m.mainWidth(), m.ui.RenderMarkdown)
}

// Init starts listening for registry changes and loads the model list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refresh.wait(m.ctx),
		m.loadModels(),
		textarea.Blink,
	)
}

// Close cancels in-flight turns and stops the refresh loop.
func (m Model) Close() {
	m.cancel()
}

// Mode returns the current theme mode.
func (m Model) Mode() styles.Mode {
	return m.theme.Mode
}

// Busy reports whether any reply is still streaming.
func (m Model) Busy() bool {
	return len(m.busy) > 0
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) mainWidth() int {
	w := m.width - m.sidebarWidth - 1
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) editorChrome() int {
	// textarea plus its top border
	h := inputHeight + 1
	if m.showSystem {
		// textarea, title line and a rounded border
		h += systemHeight + 3
	}
	return h
}

// layout sizes every component from the window size.
func (m *Model) layout() {
	sw := m.width / 4
	if sw < minSidebarWidth {
		sw = minSidebarWidth
	}
	if sw > maxSidebarWidth {
		sw = maxSidebarWidth
	}
	m.sidebarWidth = sw

	mw := m.mainWidth()
	m.input.SetWidth(mw)
	m.system.SetWidth(mw - 4)
	m.rename.Width = mw - len(m.rename.Prompt) - 1

	vh := m.height - headerHeight - statusHeight - m.editorChrome()
	if vh < 1 {
		vh = 1
	}
	m.viewport.Width = mw
	m.viewport.Height = vh

	if m.renderer == nil || m.renderer.Width() != mw {
		m.renderer = components.NewMessageRenderer(m.theme, mw, m.ui.RenderMarkdown)
	}
}
