// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
)

// =============================================================================
// FAKES
// =============================================================================

// replyBackend answers each prompt with reply(model, prompt) as a single
// fragment followed by a completion record.
type replyBackend struct {
	mu       sync.Mutex
	reply    func(model, prompt string) (string, error)
	requests [][]ollama.Message
}

func (b *replyBackend) ChatStream(ctx context.Context, model string, msgs []ollama.Message) (io.ReadCloser, error) {
	b.mu.Lock()
	b.requests = append(b.requests, msgs)
	b.mu.Unlock()

	text, err := b.reply(model, msgs[len(msgs)-1].Content)
	if err != nil {
		return nil, err
	}
	frag, _ := json.Marshal(map[string]any{
		"model":   model,
		"message": map[string]string{"role": "assistant", "content": text},
		"done":    false,
	})
	body := string(frag) + "\n" +
		`{"done":true,"eval_count":4,"eval_duration":1000000000,"total_duration":1500000000}` + "\n"
	return io.NopCloser(strings.NewReader(body)), nil
}

func goodReplies(model, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Hello"):
		return "Hello", nil
	case strings.Contains(prompt, "haiku"):
		return "cursor blinks\nwaiting for input\nenter", nil
	case strings.Contains(prompt, "fib"):
		return "if n < 2 {\n\treturn n\n}\nreturn fib(n-1) + fib(n-2)", nil
	default:
		return "1. Go\n2. Rust\n3. Zig", nil
	}
}

// =============================================================================
// RUNNER TESTS
// =============================================================================

func TestRunner_RunStandardSuite(t *testing.T) {
	b := &replyBackend{reply: goodReplies}
	r := NewRunner(b, nil)

	var seen []string
	r.OnCase = func(model string, cr CaseResult) { seen = append(seen, cr.Name) }

	res, err := r.Run(context.Background(), "llama3", StandardCases())
	require.NoError(t, err)

	assert.Equal(t, "llama3", res.Model)
	assert.Equal(t, 4, res.Passed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, []string{"greeting", "haiku", "fibonacci", "three languages"}, seen)
	assert.InDelta(t, 100, res.AvgScore, 0.001)
	assert.InDelta(t, 4.0, res.AvgTokensPerSec, 0.001)
	for _, c := range res.Cases {
		assert.Equal(t, 4, c.Stats.CompletionTokens, c.Name)
		assert.Equal(t, "llama3", c.Stats.Model, c.Name)
	}
}

func TestRunner_SendsSystemPromptFirst(t *testing.T) {
	b := &replyBackend{reply: goodReplies}
	_, err := NewRunner(b, nil).Run(context.Background(), "m", []Case{{
		Name: "sys", System: "  be terse  ", Prompt: "hi",
	}})
	require.NoError(t, err)

	require.Len(t, b.requests, 1)
	assert.Equal(t, []ollama.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	}, b.requests[0])
}

func TestRunner_FailedCaseDoesNotStopRun(t *testing.T) {
	boom := errors.New("boom")
	b := &replyBackend{reply: func(model, prompt string) (string, error) {
		if strings.Contains(prompt, "haiku") {
			return "", boom
		}
		return goodReplies(model, prompt)
	}}

	res, err := NewRunner(b, nil).Run(context.Background(), "m", StandardCases())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, res.Passed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, StatusFailed, res.Cases[1].Status)
	assert.Equal(t, "boom", res.Cases[1].Error)
}

func TestRunner_ServerErrorRecordFailsCase(t *testing.T) {
	b := &errorRecordBackend{}
	res, err := NewRunner(b, nil).Run(context.Background(), "m", []Case{{Name: "x", Prompt: "hi"}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "model not found"))
	assert.Equal(t, 1, res.Failed)
}

type errorRecordBackend struct{}

func (errorRecordBackend) ChatStream(ctx context.Context, model string, msgs []ollama.Message) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(`{"error":"model not found"}` + "\n")), nil
}

func TestRunner_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &replyBackend{reply: goodReplies}
	res, err := NewRunner(b, nil).Run(ctx, "m", StandardCases())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Cases)
	assert.Empty(t, b.requests)
}

func TestRunner_RunComparison(t *testing.T) {
	b := &replyBackend{reply: func(model, prompt string) (string, error) {
		if model == "broken" {
			return "", errors.New("unavailable")
		}
		return goodReplies(model, prompt)
	}}

	cmp, err := NewRunner(b, nil).RunComparison(context.Background(), []string{"llama3", "broken"}, StandardCases())
	require.NoError(t, err)
	require.Len(t, cmp.Results, 2)
	assert.Equal(t, "llama3", cmp.Fastest().Model)
	assert.Equal(t, 4, cmp.Results[1].Failed)

	_, err = NewRunner(b, nil).RunComparison(context.Background(), []string{"broken"}, StandardCases())
	assert.ErrorIs(t, err, ErrAllFailed)
}

// =============================================================================
// SCORING AND RESULTS
// =============================================================================

func TestContainsAll(t *testing.T) {
	s := ContainsAll("alpha", "Beta")
	assert.InDelta(t, 100, s("ALPHA beta"), 0.001)
	assert.InDelta(t, 50, s("alpha only"), 0.001)
	assert.InDelta(t, 0, s("none"), 0.001)
	assert.InDelta(t, 100, ContainsAll()("anything"), 0.001)
}

func TestStandardCases_Scorers(t *testing.T) {
	cases := StandardCases()
	haiku, langs := cases[1].Score, cases[3].Score

	assert.InDelta(t, 100, haiku("a\nb\nc"), 0.001)
	assert.InDelta(t, 70, haiku("one long line only"), 0.001)
	assert.InDelta(t, 30, haiku("hi"), 0.001)

	assert.InDelta(t, 100, langs("1. Go\n2) C\n3. Lua"), 0.001)
	assert.InDelta(t, 60, langs("1. Go"), 0.001)
	assert.InDelta(t, 20, langs("Go, C, Lua"), 0.001)
}

func TestComparison_Winners(t *testing.T) {
	c := &Comparison{Results: []*Result{
		{Model: "a", AvgTokensPerSec: 10, AvgTTFT: 300 * time.Millisecond},
		{Model: "b", AvgTokensPerSec: 30, AvgTTFT: 0},
		{Model: "c", AvgTokensPerSec: 0, AvgTTFT: 100 * time.Millisecond},
	}}
	assert.Equal(t, "b", c.Fastest().Model)
	assert.Equal(t, "c", c.LowestLatency().Model)

	assert.Nil(t, (&Comparison{}).Fastest())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "-", FormatTTFT(0))
	assert.Equal(t, "250ms", FormatTTFT(250*time.Millisecond))
	assert.Equal(t, "1.50s", FormatTTFT(1500*time.Millisecond))
	assert.Equal(t, "-", FormatTokensPerSec(0))
	assert.Equal(t, "12.5 tok/s", FormatTokensPerSec(12.5))
	assert.Equal(t, "2m 5s", FormatDuration(125*time.Second))

	r := &Result{Model: "llama3", Passed: 2, Failed: 1, AvgScore: 80}
	assert.Contains(t, r.Summary(), "2 passed, 1 failed")
	assert.Contains(t, r.Summary(), "80/100")
}

func TestComparison_Save(t *testing.T) {
	dir := t.TempDir()
	c := &Comparison{
		Start:   time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
		Results: []*Result{{Model: "llama3", Passed: 1}},
	}

	path, err := c.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, "bench_20250304_050607.json", path[len(dir)+1:])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back Comparison
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Results, 1)
	assert.Equal(t, "llama3", back.Results[0].Model)
}
