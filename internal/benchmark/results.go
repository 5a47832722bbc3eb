// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
	"github.com/jasonmcalpin/ollama-chat/internal/util"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Status is the outcome of one case.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// CaseResult records one case.
type CaseResult struct {
	Name   string             `json:"name" yaml:"name"`
	Kind   Kind               `json:"kind" yaml:"kind"`
	Status Status             `json:"status" yaml:"status"`
	Score  float64            `json:"score" yaml:"score"`
	Scored bool               `json:"scored" yaml:"scored"`
	Reply  string             `json:"reply,omitempty" yaml:"reply,omitempty"`
	Error  string             `json:"error,omitempty" yaml:"error,omitempty"`
	Stats  ollama.StreamStats `json:"stats" yaml:"stats"`
}

func (cr CaseResult) fail(err error) CaseResult {
	cr.Status = StatusFailed
	cr.Error = err.Error()
	return cr
}

// Result is one model's run over a suite.
type Result struct {
	Model    string        `json:"model" yaml:"model"`
	Start    time.Time     `json:"start" yaml:"start"`
	End      time.Time     `json:"end" yaml:"end"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Cases    []CaseResult  `json:"cases" yaml:"cases"`

	AvgTTFT         time.Duration `json:"avg_ttft" yaml:"avg_ttft"`
	AvgTokensPerSec float64       `json:"avg_tokens_per_sec" yaml:"avg_tokens_per_sec"`
	AvgScore        float64       `json:"avg_score" yaml:"avg_score"`
	Passed          int           `json:"passed" yaml:"passed"`
	Failed          int           `json:"failed" yaml:"failed"`
}

// Comparison holds one Result per model in the order they ran.
type Comparison struct {
	Results  []*Result     `json:"results" yaml:"results"`
	Start    time.Time     `json:"start" yaml:"start"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// =============================================================================
// AGGREGATES
// =============================================================================

// aggregate averages over passed cases only; zero readings are skipped.
func (r *Result) aggregate() {
	var (
		ttft              time.Duration
		tps, score        float64
		nTTFT, nTPS, nScr int
	)
	r.Passed, r.Failed = 0, 0
	for _, c := range r.Cases {
		if c.Status != StatusPassed {
			r.Failed++
			continue
		}
		r.Passed++
		if c.Stats.TTFT > 0 {
			ttft += c.Stats.TTFT
			nTTFT++
		}
		if c.Stats.TokensPerSecond > 0 {
			tps += c.Stats.TokensPerSecond
			nTPS++
		}
		if c.Scored {
			score += c.Score
			nScr++
		}
	}
	r.AvgTTFT, r.AvgTokensPerSec, r.AvgScore = 0, 0, 0
	if nTTFT > 0 {
		r.AvgTTFT = ttft / time.Duration(nTTFT)
	}
	if nTPS > 0 {
		r.AvgTokensPerSec = tps / float64(nTPS)
	}
	if nScr > 0 {
		r.AvgScore = score / float64(nScr)
	}
}

// Fastest returns the result with the highest average tokens per second.
func (c *Comparison) Fastest() *Result {
	var best *Result
	for _, r := range c.Results {
		if r.AvgTokensPerSec > 0 && (best == nil || r.AvgTokensPerSec > best.AvgTokensPerSec) {
			best = r
		}
	}
	return best
}

// LowestLatency returns the result with the smallest non-zero average TTFT.
func (c *Comparison) LowestLatency() *Result {
	var best *Result
	for _, r := range c.Results {
		if r.AvgTTFT > 0 && (best == nil || r.AvgTTFT < best.AvgTTFT) {
			best = r
		}
	}
	return best
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatTTFT renders a latency, "-" when unknown.
func FormatTTFT(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// FormatTokensPerSec renders a generation rate, "-" when unknown.
func FormatTokensPerSec(tps float64) string {
	if tps <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f tok/s", tps)
}

// FormatDuration renders a wall-clock duration.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

// Summary returns a short multi-line report.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model:    %s\n", r.Model)
	fmt.Fprintf(&b, "Duration: %s\n", FormatDuration(r.Duration))
	fmt.Fprintf(&b, "Cases:    %d passed, %d failed\n", r.Passed, r.Failed)
	fmt.Fprintf(&b, "TTFT:     %s\n", FormatTTFT(r.AvgTTFT))
	fmt.Fprintf(&b, "Speed:    %s\n", FormatTokensPerSec(r.AvgTokensPerSec))
	fmt.Fprintf(&b, "Score:    %.0f/100", r.AvgScore)
	return b.String()
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Save writes the comparison as indented JSON into dir and returns the path.
// Files are named bench_<20060102_150405>.json after the start time.
func (c *Comparison) Save(dir string) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	path := filepath.Join(dir, "bench_"+c.Start.Format("20060102_150405")+".json")
	if err := util.WriteFileAtomic(path, append(data, '\n'), 0o600, 0o700); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}
