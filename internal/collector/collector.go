// Package collector drives the paginated, rate-limited fetch loop for one
// collection job and assembles the deduplicated record set.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/ratelimit"
	"github.com/ErlanBelekov/tweet-pipeline/internal/retry"
	"github.com/ErlanBelekov/tweet-pipeline/internal/twitterapi"
)

// Source is satisfied by *twitterapi.Client.
type Source interface {
	UserTweets(ctx context.Context, username, cursor string) (*twitterapi.Page, error)
}

type Config struct {
	PageSize      int
	CourtesyDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		PageSize:      20,
		CourtesyDelay: time.Second,
	}
}

type Result struct {
	Tweets     []*domain.Tweet
	Collected  int
	Pages      int
	ReachedEnd bool
}

type Collector struct {
	source Source
	limits *ratelimit.Limiter
	cfg    Config
	logger *slog.Logger
	emit   func(domain.Event)
}

// New builds a collector for one job. emit may be nil; limits is used only
// to surface rate-limit warnings to the submitter, the gating itself lives
// inside the source client.
func New(source Source, limits *ratelimit.Limiter, cfg Config, logger *slog.Logger, emit func(domain.Event)) *Collector {
	if emit == nil {
		emit = func(domain.Event) {}
	}
	return &Collector{
		source: source,
		limits: limits,
		cfg:    cfg,
		logger: logger.With("component", "collector"),
		emit:   emit,
	}
}

// Collect loops over cursor pages until the target is reached, the server
// runs out of data, or the job is cancelled. Items without an identity are
// dropped silently. Two consecutive pages contributing zero new unique
// records terminate the loop even if the server still advertises more —
// a guard against upstream pagination bugs.
func (c *Collector) Collect(ctx context.Context, username string, target int) (*Result, error) {
	asm := NewAssembler(target)
	result := &Result{}

	cursor := ""
	zeroNewStreak := 0

	for {
		if err := ctx.Err(); err != nil {
			result.Tweets = asm.Drain()
			result.Collected = asm.Size()
			return result, err
		}

		c.warnIfGated(username)

		page, err := c.source.UserTweets(ctx, username, cursor)
		if err != nil {
			result.Tweets = asm.Drain()
			result.Collected = asm.Size()
			return result, fmt.Errorf("fetch page %d: %w", result.Pages+1, err)
		}
		result.Pages++

		newRecords := 0
		dropped := 0
		for _, t := range page.Tweets {
			if !t.Valid() {
				dropped++
				continue
			}
			if asm.Add(t) {
				newRecords++
			}
		}
		if dropped > 0 {
			c.logger.Debug("dropped invalid items", "username", username, "count", dropped)
		}

		c.emit(domain.ProgressEvent{
			Percent: percent(asm.Size(), target),
			Phase:   "collecting",
			Count:   asm.Size(),
		})

		if asm.Full() {
			break
		}
		if !page.HasNextPage && len(page.Tweets) == 0 {
			result.ReachedEnd = true
			break
		}
		if len(page.Tweets) < c.cfg.PageSize {
			// A short page signals end-of-data even when the server
			// still claims another page exists.
			result.ReachedEnd = true
			break
		}

		if newRecords == 0 {
			zeroNewStreak++
			if zeroNewStreak >= 2 {
				c.logger.Warn("two consecutive pages with no new records, stopping",
					"username", username, "pages", result.Pages)
				break
			}
		} else {
			zeroNewStreak = 0
		}

		cursor = page.NextCursor

		if err := retry.Sleep(ctx, c.cfg.CourtesyDelay); err != nil {
			result.Tweets = asm.Drain()
			result.Collected = asm.Size()
			return result, err
		}
	}

	result.Tweets = asm.Drain()
	result.Collected = asm.Size()
	return result, nil
}

// warnIfGated surfaces an upcoming rate-limit pause as a job event.
func (c *Collector) warnIfGated(username string) {
	if c.limits == nil {
		return
	}
	st, ok := c.limits.Snapshot(twitterapi.EndpointUserTweets)
	if !ok || st.Remaining > 0 || time.Until(st.ResetAt) <= 0 {
		return
	}
	c.emit(domain.WarningEvent{
		Message: fmt.Sprintf("rate limit reached for %s, waiting for reset", username),
		ResetAt: st.ResetAt,
	})
}

func percent(have, want int) int {
	if want <= 0 {
		return 100
	}
	p := have * 100 / want
	if p > 100 {
		p = 100
	}
	return p
}
