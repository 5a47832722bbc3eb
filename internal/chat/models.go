// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
)

// LoadModels fetches the model list. On failure the list is emptied, no
// model is selected and the error is logged and returned. On success the
// configured default model is selected if listed, otherwise the first.
func (c *Controller) LoadModels(ctx context.Context) error {
	models, err := c.backend.ListModels(ctx)
	if err != nil {
		c.log.Warn("failed to load models", zap.Error(err))
		c.mu.Lock()
		c.models, c.model = nil, ""
		c.mu.Unlock()
		return err
	}

	names := ollama.ModelNames(models)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = names
	c.model = ""
	if len(names) > 0 {
		c.model = names[0]
	}
	for _, n := range names {
		if n == c.cfg.DefaultModel {
			c.model = n
			break
		}
	}
	c.log.Debug("loaded models", zap.Int("count", len(names)), zap.String("selected", c.model))
	return nil
}

// Models returns the known model names in server order.
func (c *Controller) Models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.models...)
}

// Model returns the selected model, or "" when none.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// SelectModel selects name. When the list is empty (models could not be
// loaded) any name is accepted so the user can still chat.
func (c *Controller) SelectModel(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.models) == 0 {
		c.model = name
		return nil
	}
	for _, n := range c.models {
		if n == name {
			c.model = name
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownModel, name)
}

// CycleModel selects the next model in the list, wrapping around, and
// returns it.
func (c *Controller) CycleModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.models) == 0 {
		return c.model
	}
	next := 0
	for i, n := range c.models {
		if n == c.model {
			next = (i + 1) % len(c.models)
			break
		}
	}
	c.model = c.models[next]
	return c.model
}
