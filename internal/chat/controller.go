// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyInput is returned when the input is blank after trimming.
	ErrEmptyInput = errors.New("input is empty")

	// ErrNoActiveSession is returned when there is no session to send to.
	ErrNoActiveSession = errors.New("no active session")

	// ErrNotFound is returned when the target session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrUnknownModel is returned by SelectModel for a name not in the list.
	ErrUnknownModel = errors.New("unknown model")

	// ErrBusy is returned when the target session already has a reply
	// streaming. A second turn would interleave its folds with the first.
	ErrBusy = errors.New("session is still receiving a reply")
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Registry is the session state the controller reads and mutates.
type Registry interface {
	Active() string
	Session(id string) (*model.Session, bool)
	AppendUserMessageSnapshot(id, content string) (*model.Session, bool)
	FoldAssistantFragment(id, content string) bool
}

// Backend is the remote chat service.
type Backend interface {
	ChatStream(ctx context.Context, model string, messages []ollama.Message) (io.ReadCloser, error)
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// Config holds configuration for a Controller.
type Config struct {
	// DefaultModel is preferred over the first listed model when present.
	DefaultModel string

	// Logger receives turn diagnostics (default: no-op).
	Logger *zap.Logger
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller wires user submits to the registry and the chat backend.
// It is safe for concurrent use; several turns may be in flight at once,
// each bound to its own session. A session has at most one turn in flight.
type Controller struct {
	reg     Registry
	backend Backend
	cfg     Config
	log     *zap.Logger

	mu       sync.Mutex
	models   []string
	model    string
	inflight map[string]*Turn
}

// New creates a controller.
func New(reg Registry, backend Backend, cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		reg:      reg,
		backend:  backend,
		cfg:      cfg,
		log:      log.Named("chat"),
		inflight: make(map[string]*Turn),
	}
}

// Turn is one prepared request, bound to the session captured at Begin.
type Turn struct {
	SessionID string
	Model     string
	Input     string
	Outbound  []ollama.Message

	release sync.Once
}

// Begin validates input against the active session, appends the user
// message and builds the outbound list from the history as it was before
// the append.
func (c *Controller) Begin(input string) (*Turn, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	id := c.reg.Active()
	if id == "" {
		return nil, ErrNoActiveSession
	}
	return c.BeginTo(id, input)
}

// BeginTo is Begin with an explicit target session. It fails with ErrBusy
// while an earlier turn for sessionID has not been released. The turn is
// released by Stream, or by Release when it is never streamed.
func (c *Controller) BeginTo(sessionID, input string) (*Turn, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	turn := &Turn{SessionID: sessionID, Input: input}

	c.mu.Lock()
	if _, busy := c.inflight[sessionID]; busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBusy, sessionID)
	}
	c.inflight[sessionID] = turn
	turn.Model = c.model
	c.mu.Unlock()

	s, ok := c.reg.AppendUserMessageSnapshot(sessionID, input)
	if !ok {
		c.Release(turn)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	turn.Outbound = BuildOutbound(s.System, s.Messages, model.NewUserMessage(input))
	return turn, nil
}

// Release ends turn's claim on its session. It is idempotent.
func (c *Controller) Release(turn *Turn) {
	turn.release.Do(func() {
		c.mu.Lock()
		if c.inflight[turn.SessionID] == turn {
			delete(c.inflight, turn.SessionID)
		}
		c.mu.Unlock()
	})
}

// Busy reports whether sessionID has a turn in flight.
func (c *Controller) Busy(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[sessionID]
	return ok
}

// Stream sends turn and folds the reply into the turn's session until the
// reply body is exhausted. A transport failure is returned as is; the user
// message stays recorded.
func (c *Controller) Stream(ctx context.Context, turn *Turn) (ollama.Result, error) {
	defer c.Release(turn)
	log := c.log.With(zap.String("session", turn.SessionID), zap.String("model", turn.Model))

	body, err := c.backend.ChatStream(ctx, turn.Model, turn.Outbound)
	if err != nil {
		log.Warn("chat request failed", zap.Error(err))
		return ollama.Result{}, err
	}
	defer body.Close()

	res, err := ollama.NewAssembler(c.reg, turn.SessionID, c.log).Run(ctx, body)
	if err != nil {
		return res, err
	}
	log.Debug("turn complete",
		zap.Int("chars", len(res.Content)),
		zap.Bool("done", res.DoneSeen),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// Submit runs a whole turn against the active session.
func (c *Controller) Submit(ctx context.Context, input string) (*Turn, ollama.Result, error) {
	turn, err := c.Begin(input)
	if err != nil {
		return nil, ollama.Result{}, err
	}
	res, err := c.Stream(ctx, turn)
	return turn, res, err
}

// SubmitTo runs a whole turn against sessionID.
func (c *Controller) SubmitTo(ctx context.Context, sessionID, input string) (*Turn, ollama.Result, error) {
	turn, err := c.BeginTo(sessionID, input)
	if err != nil {
		return nil, ollama.Result{}, err
	}
	res, err := c.Stream(ctx, turn)
	return turn, res, err
}

// BuildOutbound returns the request history: a system message when system
// is non-blank (sent trimmed), then prior in order, then user.
func BuildOutbound(system string, prior []model.Message, user model.Message) []ollama.Message {
	out := make([]ollama.Message, 0, len(prior)+2)
	if sys := strings.TrimSpace(system); sys != "" {
		out = append(out, ollama.Message{Role: model.RoleSystem.String(), Content: sys})
	}
	for _, m := range prior {
		out = append(out, ollama.Message{Role: m.Role.String(), Content: m.Content})
	}
	return append(out, ollama.Message{Role: user.Role.String(), Content: user.Content})
}
