// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// refreshMsg asks the model to re-read the registry.
type refreshMsg struct{}

// refresher coalesces registry changes into throttled redraws.
type refresher struct {
	pending chan struct{}
	limiter *rate.Limiter
}

// newRefresher allows perSecond redraws; zero or less means unthrottled.
func newRefresher(perSecond int) *refresher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &refresher{
		pending: make(chan struct{}, 1),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// notify never blocks; it is called from whatever goroutine changed the
// registry.
func (r *refresher) notify() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// wait returns a command that delivers one refreshMsg after the next
// change, or nothing once ctx is done.
func (r *refresher) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-r.pending:
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return nil
		}
		return refreshMsg{}
	}
}
