// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package internal provides integration tests for the complete ollama-chat
// stack.
//
// These tests verify end-to-end functionality including:
// - Config-selected storage backends
// - Session persistence across restarts
// - Legacy key migration and corrupt data recovery
// - Streaming turns against an Ollama-compatible server
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatctl "github.com/jasonmcalpin/ollama-chat/internal/chat"
	"github.com/jasonmcalpin/ollama-chat/internal/config"
	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/session"
	"github.com/jasonmcalpin/ollama-chat/internal/store"
)

// =============================================================================
// TEST UTILITIES
// =============================================================================

// fakeOllama replies "reply to <last message>" one word per record. The
// "slow" model sends the first word, then waits for release.
type fakeOllama struct {
	srv     *httptest.Server
	release chan struct{}
	started chan struct{}

	mu       sync.Mutex
	requests []ollama.ChatRequest
}

func newFakeOllama(t *testing.T) *fakeOllama {
	t.Helper()
	f := &fakeOllama{
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3"},{"name":"mistral"},{"name":"slow"}]}`)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ollama.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		last := req.Messages[len(req.Messages)-1].Content
		words := strings.SplitAfter("reply to "+last, " ")
		fl := w.(http.Flusher)
		for i, word := range words {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", word)
			fl.Flush()
			if i == 0 && req.Model == "slow" {
				f.started <- struct{}{}
				select {
				case <-f.release:
				case <-r.Context().Done():
					return
				}
			}
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`+"\n")
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOllama) lastRequest(t *testing.T) ollama.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

// stack is one "process": store, registry and controller.
type stack struct {
	st  store.Store
	reg *session.Registry
	ctl *chatctl.Controller
}

func openStack(t *testing.T, cfg *config.Config, url string) *stack {
	t.Helper()
	backend, err := store.ParseBackend(cfg.Storage.Backend)
	require.NoError(t, err)
	st, err := store.Open(backend, cfg.Storage.Path)
	require.NoError(t, err)

	reg := session.Open(st, session.Config{
		Key:       cfg.Storage.Key,
		LegacyKey: cfg.Storage.LegacyKey,
		Naming:    session.Naming(cfg.Session.Naming),
	})
	ctl := chatctl.New(reg, ollama.NewClient(&ollama.ClientConfig{BaseURL: url}), chatctl.Config{
		DefaultModel: cfg.Ollama.DefaultModel,
	})
	require.NoError(t, ctl.LoadModels(context.Background()))
	return &stack{st: st, reg: reg, ctl: ctl}
}

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())
	cfg := config.Default()
	cfg.Storage.Backend = backend
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestEndToEndPersistenceAcrossRestart(t *testing.T) {
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			fake := newFakeOllama(t)
			cfg := testConfig(t, backend)

			s1 := openStack(t, cfg, fake.srv.URL)
			id := s1.reg.CreateSession()
			s1.reg.SetSystemPrompt(id, "  be brief  ")
			_, res, err := s1.ctl.Submit(context.Background(), "hello there")
			require.NoError(t, err)
			assert.True(t, res.DoneSeen)
			assert.Equal(t, "reply to hello there", res.Content)
			require.NoError(t, s1.st.Close())

			s2 := openStack(t, cfg, fake.srv.URL)
			defer s2.st.Close()
			assert.Equal(t, id, s2.reg.Active())

			got, ok := s2.reg.Session(id)
			require.True(t, ok)
			want := &model.Session{
				Name:   "Chat 1",
				System: "  be brief  ",
				Messages: []model.Message{
					model.NewUserMessage("hello there"),
					model.NewAssistantMessage("reply to hello there"),
				},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("session mismatch after restart (-want +got):\n%s", diff)
			}

			_, _, err = s2.ctl.Submit(context.Background(), "again")
			require.NoError(t, err)
			wantOut := []ollama.Message{
				{Role: "system", Content: "be brief"},
				{Role: "user", Content: "hello there"},
				{Role: "assistant", Content: "reply to hello there"},
				{Role: "user", Content: "again"},
			}
			if diff := cmp.Diff(wantOut, fake.lastRequest(t).Messages); diff != "" {
				t.Errorf("outbound mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigFileSelectsStack(t *testing.T) {
	fake := newFakeOllama(t)
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[ollama]
url = "`+fake.srv.URL+`"
default_model = "mistral"

[storage]
backend = "file"

[session]
naming = "monotonic"
`), 0o600))

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "store"), cfg.Storage.Path)

	s := openStack(t, cfg, cfg.Ollama.URL)
	defer s.st.Close()
	assert.Equal(t, "mistral", s.ctl.Model())

	a := s.reg.CreateSession()
	s.reg.CreateSession()
	s.reg.DeleteSession(a)
	c := s.reg.CreateSession()
	got, _ := s.reg.Session(c)
	assert.Equal(t, "Chat 3", got.Name)

	_, err = os.Stat(filepath.Join(home, "store"))
	assert.NoError(t, err)
}

// =============================================================================
// RECOVERY
// =============================================================================

func TestLegacyMigrationOnOpen(t *testing.T) {
	fake := newFakeOllama(t)
	cfg := testConfig(t, "sqlite")

	legacy := `{"L1":{"name":"Old chat","messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hey"}],"system":""}}`
	st, err := store.OpenSQLite(cfg.Storage.Path)
	require.NoError(t, err)
	require.NoError(t, st.Save(store.DefaultLegacyKey, legacy))
	require.NoError(t, st.Close())

	s := openStack(t, cfg, fake.srv.URL)
	defer s.st.Close()
	assert.Equal(t, []string{"L1"}, s.reg.IDs())
	assert.Equal(t, "L1", s.reg.Active())

	_, ok, err := s.st.Load(store.DefaultLegacyKey)
	require.NoError(t, err)
	assert.False(t, ok)
	raw, ok, err := s.st.Load(store.DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, legacy, raw)
}

func TestCorruptStoreIsBackedUp(t *testing.T) {
	fake := newFakeOllama(t)
	cfg := testConfig(t, "file")

	st, err := store.OpenFile(cfg.Storage.Path)
	require.NoError(t, err)
	require.NoError(t, st.Save(store.DefaultKey, "{not json"))

	s := openStack(t, cfg, fake.srv.URL)
	defer s.st.Close()
	assert.Equal(t, 0, s.reg.Len())

	backup, ok, err := st.Load(store.DefaultKey + ".corrupt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "{not json", backup)

	// The first mutation replaces the corrupt document.
	s.reg.CreateSession()
	raw, _, err := st.Load(store.DefaultKey)
	require.NoError(t, err)
	_, err = model.ParseSessionStore(raw)
	assert.NoError(t, err)
}

// =============================================================================
// STREAMING
// =============================================================================

func TestSessionDeletedMidStream(t *testing.T) {
	fake := newFakeOllama(t)
	cfg := testConfig(t, "memory")
	s := openStack(t, cfg, fake.srv.URL)
	require.NoError(t, s.ctl.SelectModel("slow"))

	gone := s.reg.CreateSession()
	other := s.reg.CreateSession()

	type outcome struct {
		res ollama.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		_, res, err := s.ctl.SubmitTo(context.Background(), gone, "bye")
		done <- outcome{res, err}
	}()

	<-fake.started
	s.reg.DeleteSession(gone)
	close(fake.release)

	out := <-done
	require.NoError(t, out.err)
	assert.True(t, out.res.Detached)
	assert.Equal(t, "reply to bye", out.res.Content)

	_, ok := s.reg.Session(gone)
	assert.False(t, ok)
	o, _ := s.reg.Session(other)
	assert.Empty(t, o.Messages)
}

func TestCancelledTurnKeepsPartialReply(t *testing.T) {
	fake := newFakeOllama(t)
	cfg := testConfig(t, "memory")
	s := openStack(t, cfg, fake.srv.URL)
	require.NoError(t, s.ctl.SelectModel("slow"))
	id := s.reg.CreateSession()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := s.ctl.Submit(ctx, "wait")
		done <- err
	}()

	<-fake.started
	require.Eventually(t, func() bool {
		got, _ := s.reg.Session(id)
		return len(got.Messages) == 2
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	got, _ := s.reg.Session(id)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "reply ", got.Messages[1].Content)
}
