// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jasonmcalpin/ollama-chat/internal/chat"
	"github.com/jasonmcalpin/ollama-chat/internal/model"
	"github.com/jasonmcalpin/ollama-chat/internal/ollama"
)

// Backend is the part of the Ollama client the runner needs.
type Backend interface {
	ChatStream(ctx context.Context, model string, messages []ollama.Message) (io.ReadCloser, error)
}

// ErrAllFailed is returned by RunComparison when no model completed a case.
var ErrAllFailed = errors.New("every model failed")

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes cases one at a time against a backend.
type Runner struct {
	backend Backend
	log     *zap.Logger

	// OnCase, when set, is called after every case finishes.
	OnCase func(model string, res CaseResult)
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(backend Backend, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{backend: backend, log: log.Named("benchmark")}
}

// Run sends every case to modelName in order. A failed case is recorded and
// the run moves on; the returned error is the first failure, or the context
// error when the run was cancelled.
func (r *Runner) Run(ctx context.Context, modelName string, cases []Case) (*Result, error) {
	res := &Result{Model: modelName, Start: time.Now()}

	var firstErr error
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			firstErr = err
			break
		}
		cr, err := r.runCase(ctx, modelName, c)
		res.Cases = append(res.Cases, cr)
		if r.OnCase != nil {
			r.OnCase(modelName, cr)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	res.End = time.Now()
	res.Duration = res.End.Sub(res.Start)
	res.aggregate()
	r.log.Info("benchmark finished",
		zap.String("model", modelName),
		zap.Int("passed", res.Passed),
		zap.Int("failed", res.Failed),
		zap.Float64("tokens_per_sec", res.AvgTokensPerSec))
	return res, firstErr
}

func (r *Runner) runCase(ctx context.Context, modelName string, c Case) (CaseResult, error) {
	cr := CaseResult{Name: c.Name, Kind: c.Kind}
	log := r.log.With(zap.String("model", modelName), zap.String("case", c.Name))

	outbound := chat.BuildOutbound(c.System, nil, model.NewUserMessage(c.Prompt))
	body, err := r.backend.ChatStream(ctx, modelName, outbound)
	if err != nil {
		log.Warn("case request failed", zap.Error(err))
		return cr.fail(err), err
	}
	defer body.Close()

	// The reply is not kept anywhere, so the sink accepts every fragment.
	discard := ollama.SinkFunc(func(string, string) bool { return true })
	out, err := ollama.NewAssembler(discard, c.Name, r.log).Run(ctx, body)
	if err == nil {
		err = out.Err()
	}
	if err == nil && !out.DoneSeen {
		err = fmt.Errorf("reply ended without a completion record")
	}

	cr.Stats = out.Stats
	cr.Reply = out.Content
	if err != nil {
		log.Warn("case failed", zap.Error(err))
		return cr.fail(err), err
	}
	cr.Status = StatusPassed
	if c.Score != nil {
		cr.Score = c.Score(out.Content)
		cr.Scored = true
	}
	log.Debug("case passed", zap.String("stats", out.Stats.Format()))
	return cr, nil
}

// RunComparison benchmarks each model in turn. Results are kept for models
// that fail; ErrAllFailed is returned only when none passed a single case.
func (r *Runner) RunComparison(ctx context.Context, models []string, cases []Case) (*Comparison, error) {
	cmp := &Comparison{Results: make([]*Result, 0, len(models)), Start: time.Now()}
	ok := 0
	for _, m := range models {
		res, _ := r.Run(ctx, m, cases)
		cmp.Results = append(cmp.Results, res)
		if res.Passed > 0 {
			ok++
		}
		if ctx.Err() != nil {
			break
		}
	}
	cmp.Duration = time.Since(cmp.Start)
	if err := ctx.Err(); err != nil {
		return cmp, err
	}
	if ok == 0 && len(models) > 0 {
		return cmp, ErrAllFailed
	}
	return cmp, nil
}
