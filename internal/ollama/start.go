// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// SERVER START
// =============================================================================

// startPollInterval is how often a freshly launched server is checked.
const startPollInterval = 500 * time.Millisecond

// EnsureRunning checks that Ollama answers and launches `ollama serve` when
// it does not. It returns once the server responds, the platform startup
// window elapses, or ctx is done.
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}

	path, err := findOllamaExecutable()
	if err != nil {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "failed to find Ollama executable",
			Cause:   err,
		}
	}
	if err := launchServe(path); err != nil {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: fmt.Sprintf("failed to start Ollama (path: %s)", path),
			Cause:   err,
		}
	}
	c.log.Info("started ollama serve", zap.String("path", path))

	return c.waitReady(ctx, path, startupWait)
}

// findOllamaExecutable looks on PATH, then in the platform's usual install
// locations.
func findOllamaExecutable() (string, error) {
	for _, name := range executableNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	candidates := installCandidates()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ollama not found in PATH or %d install locations; is Ollama installed?", len(candidates))
}

// launchServe starts `ollama serve` detached from this process. Output is
// discarded and the child outlives us.
func launchServe(path string) error {
	cmd := exec.Command(path, "serve")
	cmd.Env = os.Environ()
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Release only frees our handle; the server keeps running.
	_ = cmd.Process.Release()
	return nil
}

// waitReady polls CheckRunning until it succeeds or the window closes.
func (c *Client) waitReady(ctx context.Context, path string, window time.Duration) error {
	start := time.Now()
	deadline := start.Add(window)
	ticker := time.NewTicker(startPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		checkCtx, cancel := context.WithTimeout(ctx, startPollInterval)
		lastErr = c.CheckRunning(checkCtx)
		cancel()
		if lastErr == nil {
			c.log.Info("ollama ready", zap.Duration("elapsed", time.Since(start)))
			return nil
		}
		if !time.Now().Before(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return &ClientError{
				Type:    ErrTypeConnection,
				Message: "Ollama startup cancelled",
				Cause:   ctx.Err(),
			}
		case <-ticker.C:
		}
	}

	return &ClientError{
		Type:    ErrTypeConnection,
		Message: fmt.Sprintf("Ollama started but not responding after %s (path: %s)", window, path),
		Cause:   lastErr,
	}
}
