// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	chatctl "github.com/jasonmcalpin/ollama-chat/internal/chat"
	"github.com/jasonmcalpin/ollama-chat/internal/config"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/session"
	"github.com/jasonmcalpin/ollama-chat/internal/store"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

// App bundles the long-lived components every command works with.
type App struct {
	Config     *config.Config
	Log        *zap.Logger
	Store      store.Store
	Client     *ollama.Client
	Registry   *session.Registry
	Controller *chatctl.Controller
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (store.Store, error) {
	backend, err := store.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	st, err := store.Open(backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	return st, nil
}

// openApp wires store, registry, client and controller from o.
func openApp(o *rootOptions) (*App, error) {
	if o.cfg == nil {
		return nil, &ConfigError{Err: errors.New("configuration not loaded")}
	}
	cfg, log := o.cfg, o.log
	if log == nil {
		log = zap.NewNop()
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	reg := session.Open(st, session.Config{
		Key:       cfg.Storage.Key,
		LegacyKey: cfg.Storage.LegacyKey,
		Naming:    session.Naming(cfg.Session.Naming),
		Logger:    log,
	})

	client := ollama.NewClient(&ollama.ClientConfig{
		BaseURL: cfg.Ollama.URL,
		Timeout: cfg.RequestTimeout(),
		Logger:  log,
	})

	ctl := chatctl.New(reg, client, chatctl.Config{
		DefaultModel: cfg.Ollama.DefaultModel,
		Logger:       log,
	})

	return &App{
		Config:     cfg,
		Log:        log,
		Store:      st,
		Client:     client,
		Registry:   reg,
		Controller: ctl,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// ensureServer launches Ollama when ollama.auto_start is set. A failed start
// is only logged; the next request reports the outage the usual way.
func (a *App) ensureServer(ctx context.Context) {
	if !a.Config.Ollama.AutoStart {
		return
	}
	if err := a.Client.EnsureRunning(ctx); err != nil {
		a.Log.Warn("ollama auto-start failed", zap.Error(err))
	}
}

// prepareModel loads the model list and applies an explicit selection.
// A failed list is not fatal when a model was named: the server may still
// accept it.
func (a *App) prepareModel(ctx context.Context, name string) error {
	a.ensureServer(ctx)
	if err := a.Controller.LoadModels(ctx); err != nil {
		if name == "" {
			return err
		}
		a.Log.Debug("using unlisted model", zap.String("model", name), zap.Error(err))
	}
	if name != "" {
		return a.Controller.SelectModel(name)
	}
	if a.Controller.Model() == "" {
		return &NotFoundError{Kind: "model", Ref: "(none installed; try `ollama pull llama3`)"}
	}
	return nil
}

// resolveSession maps a user reference to a session id.
func (a *App) resolveSession(ref string) (string, error) {
	id, ok := a.Registry.Find(ref)
	if !ok {
		return "", &NotFoundError{Kind: "session", Ref: ref}
	}
	return id, nil
}

// themeMode resolves the markdown style the same way the UI does.
func (a *App) themeMode() styles.Mode {
	stored, _, err := a.Store.Load(a.Config.Storage.ThemeKey)
	if err != nil {
		a.Log.Debug("theme preference unreadable", zap.Error(err))
	}
	return styles.ResolveMode(a.Config.UI.Theme, stored, styles.DetectMode)
}
