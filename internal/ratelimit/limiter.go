// Package ratelimit tracks per-endpoint quota state reported by the source
// API and gates outgoing calls against it.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/metrics"
	"github.com/ErlanBelekov/tweet-pipeline/internal/retry"
)

const (
	headerLimit     = "x-rate-limit-limit"
	headerRemaining = "x-rate-limit-remaining"
	headerReset     = "x-rate-limit-reset" // epoch seconds
)

// State is the last-known quota for one endpoint. The remote server is the
// source of truth, so last-write-wins on concurrent updates is acceptable.
type State struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is constructed once at the composition root and shared by all
// workers; the map stays bounded because it is keyed only by the fixed set
// of endpoints the pipeline actually calls.
type Limiter struct {
	mu     sync.Mutex
	states map[string]State
	logger *slog.Logger
}

func NewLimiter(logger *slog.Logger) *Limiter {
	return &Limiter{
		states: make(map[string]State),
		logger: logger.With("component", "ratelimit"),
	}
}

// BeforeCall blocks until the endpoint's quota allows another request.
// Returns how long it waited (zero when not gated). The wait suspends only
// the calling worker, never other jobs.
func (l *Limiter) BeforeCall(ctx context.Context, endpoint string) (time.Duration, error) {
	st, ok := l.Snapshot(endpoint)
	if !ok || st.Remaining > 0 {
		return 0, nil
	}

	wait := time.Until(st.ResetAt)
	if wait <= 0 {
		return 0, nil
	}

	l.logger.Warn("rate limit exhausted, waiting for reset",
		"endpoint", endpoint,
		"reset_at", st.ResetAt,
		"wait", wait,
	)
	metrics.RateLimitWaitsTotal.WithLabelValues(endpoint).Inc()
	if err := retry.Sleep(ctx, wait); err != nil {
		return 0, err
	}
	return wait, nil
}

// AfterCall updates the endpoint state from rate-limit response headers.
// Missing headers leave the previous state untouched.
func (l *Limiter) AfterCall(endpoint string, header http.Header) {
	limit, okLimit := atoi(header.Get(headerLimit))
	remaining, okRemaining := atoi(header.Get(headerRemaining))
	resetEpoch, okReset := atoi(header.Get(headerReset))
	if !okLimit && !okRemaining && !okReset {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.states[endpoint]
	if okLimit {
		st.Limit = limit
	}
	if okRemaining {
		st.Remaining = remaining
	}
	if okReset {
		st.ResetAt = time.Unix(int64(resetEpoch), 0)
	}
	l.states[endpoint] = st
}

// Snapshot returns the last-known state for endpoint.
func (l *Limiter) Snapshot(endpoint string) (State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.states[endpoint]
	return st, ok
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
