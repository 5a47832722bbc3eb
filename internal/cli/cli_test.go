// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jasonmcalpin/ollama-chat/internal/benchmark"
	chatctl "github.com/jasonmcalpin/ollama-chat/internal/chat"
	"github.com/jasonmcalpin/ollama-chat/internal/config"
	"github.com/jasonmcalpin/ollama-chat/internal/export"
	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/store"
)

// =============================================================================
// HARNESS
// =============================================================================

// fakeOllama answers the endpoints the CLI uses and records chat requests.
type fakeOllama struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []ollama.ChatRequest
}

func newFakeOllama(t *testing.T) *fakeOllama {
	t.Helper()
	f := &fakeOllama{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	})
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"0.5.7"}`)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3","size":4661224676,"details":{"parameter_size":"8B","quantization_level":"Q4_0"}},{"name":"mistral","size":4109865159}]}`)
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

		fl, _ := w.(http.Flusher)
		for _, part := range []string{"Hello", " world"} {
			fmt.Fprintf(w, `{"model":%q,"message":{"role":"assistant","content":%q},"done":false}`+"\n", req.Model, part)
			if fl != nil {
				fl.Flush()
			}
		}
		fmt.Fprintf(w, `{"model":%q,"message":{"role":"assistant","content":""},"done":true,"eval_count":2}`+"\n", req.Model)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOllama) chatRequests() []ollama.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ollama.ChatRequest(nil), f.requests...)
}

// isolate points the config directory at a temp dir and selects the file
// backend so every command in a test sees the same sessions.
func isolate(t *testing.T, url string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)
	t.Setenv("OLLAMA_CHAT_URL", url)
	t.Setenv("OLLAMA_CHAT_STORAGE", "file")
	t.Setenv("OLLAMA_CHAT_STORAGE_PATH", "")
	t.Setenv("OLLAMA_CHAT_MODEL", "")
	t.Setenv("OLLAMA_CHAT_THEME", "dark")
	t.Setenv("OLLAMA_CHAT_LOG_FILE", "-")
	t.Setenv("OLLAMA_CHAT_LOG_LEVEL", "")
	t.Setenv("OLLAMA_CHAT_TIMEOUT", "")
	t.Setenv("OLLAMA_CHAT_AUTO_START", "")
	return home
}

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func listSessions(t *testing.T) []export.Document {
	t.Helper()
	res := run(t, "", "sessions", "list", "--format", "json")
	require.NoError(t, res.err)
	var out []export.Document
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	return out
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsAndPersists(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	res := run(t, "", "ask", "hi", "there")
	require.NoError(t, res.err)
	assert.Equal(t, "Hello world\n", res.stdout)

	reqs := fake.chatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "llama3", reqs[0].Model)
	assert.True(t, reqs[0].Stream)
	assert.Equal(t, []ollama.Message{{Role: "user", Content: "hi there"}}, reqs[0].Messages)

	sessions := listSessions(t)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Chat 1", sessions[0].Name)
	want := []model.Message{
		model.NewUserMessage("hi there"),
		model.NewAssistantMessage("Hello world"),
	}
	if diff := cmp.Diff(want, sessions[0].Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestAsk_ContinuesActiveSessionWithHistory(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	require.NoError(t, run(t, "", "ask", "first").err)
	require.NoError(t, run(t, "", "ask", "--system", "be brief", "second").err)

	reqs := fake.chatRequests()
	require.Len(t, reqs, 2)
	want := []ollama.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "Hello world"},
		{Role: "user", Content: "second"},
	}
	if diff := cmp.Diff(want, reqs[1].Messages); diff != "" {
		t.Errorf("outbound mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, listSessions(t), 1)
}

func TestAsk_NewSessionAndModelFlag(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	require.NoError(t, run(t, "", "ask", "one").err)
	require.NoError(t, run(t, "", "ask", "--new", "-m", "mistral", "two").err)

	reqs := fake.chatRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "mistral", reqs[1].Model)
	assert.Len(t, reqs[1].Messages, 1)

	sessions := listSessions(t)
	require.Len(t, sessions, 2)
	assert.Equal(t, "Chat 2", sessions[1].Name)
}

func TestAsk_ReadsStdin(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	require.NoError(t, run(t, "piped question\n", "ask").err)
	require.NoError(t, run(t, "dash question", "ask", "-").err)

	reqs := fake.chatRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "piped question\n", reqs[0].Messages[0].Content)
	assert.Equal(t, "dash question", reqs[1].Messages[len(reqs[1].Messages)-1].Content)
}

func TestAsk_Stats(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	res := run(t, "", "ask", "--stats", "hi")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "2 tokens")
}

func TestAsk_Errors(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	res := run(t, "   ", "ask")
	var usage *UsageError
	require.ErrorAs(t, res.err, &usage)
	assert.Equal(t, ExitUsageError, ExitCode(res.err))

	res = run(t, "", "ask", "--session", "nope", "hi")
	assert.Equal(t, ExitNotFoundError, ExitCode(res.err))

	res = run(t, "", "ask", "-m", "missing", "hi")
	assert.ErrorIs(t, res.err, chatctl.ErrUnknownModel)

	assert.Empty(t, fake.chatRequests())
}

func TestAsk_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	isolate(t, url)

	res := run(t, "", "ask", "hi")
	require.Error(t, res.err)
	assert.True(t, ollama.IsNotRunning(res.err))
	assert.Equal(t, ExitNetworkError, ExitCode(res.err))
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessions_Lifecycle(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	res := run(t, "", "sessions", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No sessions yet.")

	res = run(t, "", "sessions", "new", "--system", "terse", "Work")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "created Work")
	require.NoError(t, run(t, "", "sessions", "new").err)

	res = run(t, "", "sessions", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Work")
	assert.Contains(t, res.stdout, "Chat 2")

	require.NoError(t, run(t, "", "sessions", "rename", "2", "Play", "time").err)
	res = run(t, "", "sessions", "system", "1")
	require.NoError(t, res.err)
	assert.Equal(t, "terse\n", res.stdout)

	require.NoError(t, run(t, "", "sessions", "system", "1", "--clear").err)

	sessions := listSessions(t)
	require.Len(t, sessions, 2)
	assert.Equal(t, "Work", sessions[0].Name)
	assert.Equal(t, "", sessions[0].System)
	assert.Equal(t, "Play time", sessions[1].Name)

	// Prefix lookup.
	res = run(t, "", "sessions", "show", sessions[1].ID[:20])
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Play time")
	assert.Contains(t, res.stdout, "(no messages)")

	require.NoError(t, run(t, "", "sessions", "delete", "1", "2").err)
	assert.Empty(t, listSessions(t))

	res = run(t, "", "sessions", "delete", "1")
	assert.Equal(t, ExitNotFoundError, ExitCode(res.err))
}

func TestSessions_RenameRejectsBlank(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	res := run(t, "", "sessions", "rename", "1", "  ")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

func TestSessions_ShowFormats(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)
	require.NoError(t, run(t, "", "ask", "hi").err)

	res := run(t, "", "sessions", "show", "1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "[You] hi")
	assert.Contains(t, res.stdout, "[AI] Hello world")

	res = run(t, "", "sessions", "show", "1", "--format", "yaml")
	require.NoError(t, res.err)
	var got export.Document
	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, "Chat 1", got.Name)
	assert.Len(t, got.Messages, 2)

	res = run(t, "", "sessions", "show", "1", "--format", "xml")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

func TestSessions_Export(t *testing.T) {
	fake := newFakeOllama(t)
	home := isolate(t, fake.srv.URL)
	require.NoError(t, run(t, "", "ask", "hi").err)

	res := run(t, "", "sessions", "export")
	require.NoError(t, res.err)
	st, err := model.ParseSessionStore(res.stdout)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())

	// The JSON export is the stored document.
	fs, err := store.OpenFile(filepath.Join(home, "store"))
	require.NoError(t, err)
	raw, ok, err := fs.Load(store.DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, raw, res.stdout)

	out := filepath.Join(home, "export.yaml")
	res = run(t, "", "sessions", "export", "--format", "yaml", "-o", out)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "exported 1 sessions")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var list []export.Document
	require.NoError(t, yaml.Unmarshal(data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Hello world", list[0].Messages[1].Content)

	res = run(t, "", "sessions", "export", "1", "--format", "md", "--dir", home)
	require.NoError(t, res.err)
	matches, err := filepath.Glob(filepath.Join(home, "ollama-chat_Chat_1_*.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	md, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Chat 1")
	assert.Contains(t, string(md), "Hello world")

	res = run(t, "", "sessions", "export", "--format", "html", "--no-metadata")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "<p>Hello world</p>")

	res = run(t, "", "sessions", "export", "--format", "pdf")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
	res = run(t, "", "sessions", "export", "7")
	assert.Equal(t, ExitNotFoundError, ExitCode(res.err))
}

// =============================================================================
// MODELS, MIGRATE, DOCTOR, CONFIG
// =============================================================================

func TestModels(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	res := run(t, "", "models")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "llama3")
	assert.Contains(t, res.stdout, "4.3 GB")
	assert.Contains(t, res.stdout, "mistral")

	res = run(t, "", "models", "--format", "json")
	require.NoError(t, res.err)
	var models []ollama.ModelInfo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &models))
	assert.Equal(t, []string{"llama3", "mistral"}, ollama.ModelNames(models))
}

// =============================================================================
// BENCH
// =============================================================================

func TestBench(t *testing.T) {
	fake := newFakeOllama(t)
	home := isolate(t, fake.srv.URL)

	res := run(t, "", "bench", "--format", "json", "--save")
	require.NoError(t, res.err, res.stderr)
	var cmpr benchmark.Comparison
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &cmpr))
	require.Len(t, cmpr.Results, 1)
	assert.Equal(t, "llama3", cmpr.Results[0].Model)
	assert.Equal(t, len(benchmark.StandardCases()), cmpr.Results[0].Passed)

	saved, err := filepath.Glob(filepath.Join(home, "benchmarks", "bench_*.json"))
	require.NoError(t, err)
	assert.Len(t, saved, 1)

	// Sessions are never touched.
	assert.Empty(t, listSessions(t))

	res = run(t, "", "bench", "--all")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "mistral")
	assert.Contains(t, res.stdout, "Fastest:")
	assert.Contains(t, res.stderr, "greeting")

	res = run(t, "", "bench", "--all", "llama3")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

func TestBenchTargets(t *testing.T) {
	installed := []string{"llama3", "mistral"}
	assert.Equal(t, []string{"mistral"}, benchTargets(installed, "mistral", false))
	assert.Equal(t, []string{"llama3"}, benchTargets(installed, "missing", false))
	assert.Equal(t, installed, benchTargets(installed, "", true))
	assert.Empty(t, benchTargets(nil, "llama3", false))
}

func TestMigrate(t *testing.T) {
	fake := newFakeOllama(t)
	home := isolate(t, fake.srv.URL)

	legacy := `{"old":{"name":"Chat 1","messages":[{"role":"user","content":"from before"}],"system":""}}`
	fs, err := store.OpenFile(filepath.Join(home, "store"))
	require.NoError(t, err)
	require.NoError(t, fs.Save(store.DefaultLegacyKey, legacy))

	res := run(t, "", "migrate", "--dry-run")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "would copy")

	res = run(t, "", "migrate")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "moved")

	raw, ok, err := fs.Load(store.DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, legacy, raw)
	_, ok, err = fs.Load(store.DefaultLegacyKey)
	require.NoError(t, err)
	assert.False(t, ok)

	res = run(t, "", "migrate")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "nothing to migrate")

	sessions := listSessions(t)
	require.Len(t, sessions, 1)
	assert.Equal(t, "old", sessions[0].ID)
}

func TestDoctor(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)

	res := run(t, "", "doctor")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "0.5.7")
	assert.Contains(t, res.stdout, "2 installed")

	t.Setenv("OLLAMA_CHAT_MODEL", "phi3")
	res = run(t, "", "doctor")
	assert.ErrorIs(t, res.err, errDoctorFailed)
	assert.Contains(t, res.stdout, "phi3 missing")
}

func TestDoctor_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	isolate(t, url)

	res := run(t, "", "doctor")
	assert.ErrorIs(t, res.err, errDoctorFailed)
	assert.Contains(t, res.stdout, "ollama serve")
}

func TestDoctor_AutoStartWithServerUp(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)
	t.Setenv("OLLAMA_CHAT_AUTO_START", "true")
	t.Setenv("PATH", t.TempDir())

	res := run(t, "", "doctor")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "autostart")
	assert.Contains(t, res.stdout, "0.5.7")
}

func TestDoctor_AutoStartWithoutBinary(t *testing.T) {
	for _, p := range []string{"/usr/local/bin/ollama", "/usr/bin/ollama", "/opt/ollama/ollama"} {
		if _, err := os.Stat(p); err == nil {
			t.Skipf("ollama installed at %s", p)
		}
	}
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	isolate(t, url)
	t.Setenv("OLLAMA_CHAT_AUTO_START", "true")
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	res := run(t, "", "doctor")
	assert.ErrorIs(t, res.err, errDoctorFailed)
	assert.Contains(t, res.stdout, "autostart")
	assert.Contains(t, res.stdout, "find Ollama executable")
}

func TestAsk_AutoStartWithServerUp(t *testing.T) {
	fake := newFakeOllama(t)
	isolate(t, fake.srv.URL)
	t.Setenv("OLLAMA_CHAT_AUTO_START", "1")
	t.Setenv("PATH", t.TempDir())

	res := run(t, "", "ask", "hello")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Hello world")
}

func TestConfigCommands(t *testing.T) {
	home := isolate(t, "http://127.0.0.1:1")

	res := run(t, "", "config", "path")
	require.NoError(t, res.err)
	assert.Equal(t, filepath.Join(home, "config.toml")+"\n", res.stdout)

	res = run(t, "", "config", "init")
	require.NoError(t, res.err)
	_, err := os.Stat(filepath.Join(home, "config.toml"))
	require.NoError(t, err)

	res = run(t, "", "config", "init")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
	require.NoError(t, run(t, "", "config", "init", "--force").err)

	res = run(t, "", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "[ollama]")
	assert.Contains(t, res.stdout, "http://127.0.0.1:1")
}

func TestConfigErrorExitCode(t *testing.T) {
	home := isolate(t, "http://127.0.0.1:1")
	path := filepath.Join(home, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\nbackend = \"redis\"\n"), 0o600))

	res := run(t, "", "--config", path, "sessions", "list")
	var cfgErr *ConfigError
	require.ErrorAs(t, res.err, &cfgErr)
	assert.Equal(t, ExitConfigError, ExitCode(res.err))

	// path still works with a broken file.
	res = run(t, "", "--config", path, "config", "path")
	require.NoError(t, res.err)
	assert.Equal(t, path+"\n", res.stdout)
}

func TestRootRequiresTerminal(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	res := run(t, "")
	var usage *UsageError
	assert.ErrorAs(t, res.err, &usage)
}

// =============================================================================
// HELPERS
// =============================================================================

func TestReadPrompt(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
		tty   bool
		want  string
		err   bool
	}{
		{"args joined", []string{"a", "b"}, "ignored", false, "a b", false},
		{"dash reads stdin", []string{"-"}, "piped", true, "piped", false},
		{"empty reads pipe", nil, "piped", false, "piped", false},
		{"empty on tty", nil, "", true, "", true},
		{"blank", []string{" "}, "", true, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readPrompt(tc.args, strings.NewReader(tc.stdin), tc.tty)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneralError},
		{&ConfigError{Err: errors.New("bad")}, ExitConfigError},
		{&UsageError{Message: "no"}, ExitUsageError},
		{&NotFoundError{Kind: "session", Ref: "x"}, ExitNotFoundError},
		{fmt.Errorf("wrap: %w", chatctl.ErrNotFound), ExitNotFoundError},
		{fmt.Errorf("wrap: %w", ollama.ErrNotRunning), ExitNetworkError},
		{ollama.ErrTimeout, ExitTimeoutError},
		{&ollama.ClientError{Type: ollama.ErrTypeConnection, Message: "502"}, ExitNetworkError},
		{context.Canceled, ExitInterrupted},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ExitCode(tc.err), "%v", tc.err)
	}
}
