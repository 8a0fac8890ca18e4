// Package retry provides the single retry-with-backoff combinator used by
// every remote call site (source API fetches, connection acquisition).
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
)

type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// nil means retry everything.
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
	}
}

// Do runs fn up to p.MaxAttempts times with exponential backoff between
// attempts (InitialDelay, doubling). A non-retryable error is returned
// immediately. Exhausting the budget wraps domain.ErrMaxRetries so callers
// can stop retrying at their layer.
func Do(ctx context.Context, p Policy, op string, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}

	return fmt.Errorf("%s after %d attempts: %w: %w", op, p.MaxAttempts, domain.ErrMaxRetries, lastErr)
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
