package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/collector"
	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/tweet-pipeline/internal/metrics"
	"github.com/ErlanBelekov/tweet-pipeline/internal/ratelimit"
)

// ContentSource is satisfied by *twitterapi.Client.
type ContentSource interface {
	collector.Source
	UserInfo(ctx context.Context, username string) (*domain.Profile, error)
}

type TweetWriter interface {
	WriteBatch(ctx context.Context, userID string, tweets []*domain.Tweet) (postgres.BatchResult, error)
}

type ProfileStore interface {
	Upsert(ctx context.Context, p *domain.Profile) error
}

type RunStore interface {
	Create(ctx context.Context, run *domain.CollectionRun) (*domain.CollectionRun, error)
	Complete(ctx context.Context, runID string, status domain.Status, collected int, reachedEnd bool, runErr *string) error
}

// Worker runs one collection job end to end: profile fetch, paginated
// collection, and the chunked batch write. One Worker instance serves all
// jobs; per-job state lives in the collector it builds.
type Worker struct {
	source   ContentSource
	limits   *ratelimit.Limiter
	tweets   TweetWriter
	profiles ProfileStore
	runs     RunStore

	collectorCfg collector.Config
	logger       *slog.Logger
}

func NewWorker(
	source ContentSource,
	limits *ratelimit.Limiter,
	tweets TweetWriter,
	profiles ProfileStore,
	runs RunStore,
	collectorCfg collector.Config,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		source:       source,
		limits:       limits,
		tweets:       tweets,
		profiles:     profiles,
		runs:         runs,
		collectorCfg: collectorCfg,
		logger:       logger.With("component", "worker"),
	}
}

func (w *Worker) Run(ctx context.Context, job *domain.CollectionJob, emit func(domain.Event)) error {
	logger := w.logger.With("job_id", job.ID, "username", job.Username)
	start := time.Now()

	emit(domain.ProgressEvent{Percent: 0, Phase: "profile", Count: 0})

	profile, err := w.source.UserInfo(ctx, job.Username)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	if err := w.profiles.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}

	// Open the run record before collecting so a crash leaves a visible
	// incomplete entry in the history.
	run, err := w.runs.Create(ctx, &domain.CollectionRun{
		JobID:     job.ID,
		Username:  job.Username,
		Status:    domain.StatusRunning,
		StartedAt: start,
	})
	if err != nil {
		return fmt.Errorf("create run record: %w", err)
	}

	col := collector.New(w.source, w.limits, w.collectorCfg, logger, emit)
	result, err := col.Collect(ctx, job.Username, job.TargetCount)
	metrics.PagesFetchedTotal.Add(float64(result.Pages))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.closeRun(ctx, run.ID, domain.StatusCancelled, result, nil, logger)
			return err
		}
		msg := err.Error()
		w.closeRun(ctx, run.ID, domain.StatusFailed, result, &msg, logger)
		return fmt.Errorf("collect: %w", err)
	}

	// Cancellation is checked once more before any database write.
	if err := ctx.Err(); err != nil {
		w.closeRun(ctx, run.ID, domain.StatusCancelled, result, nil, logger)
		return err
	}

	emit(domain.ProgressEvent{Percent: 95, Phase: "persisting", Count: result.Collected})

	written, err := w.tweets.WriteBatch(ctx, profile.ID, result.Tweets)
	if err != nil {
		// Earlier chunks stay committed; report the partial count.
		logger.Warn("batch write failed after partial success",
			"written", written.Written, "chunks", written.Chunks, "error", err)
		if errors.Is(err, context.Canceled) {
			w.closeRun(ctx, run.ID, domain.StatusCancelled, result, nil, logger)
			return err
		}
		msg := err.Error()
		w.closeRun(ctx, run.ID, domain.StatusFailed, result, &msg, logger)
		return fmt.Errorf("write batch: %w", err)
	}

	metrics.TweetsCollectedTotal.Add(float64(result.Collected))
	metrics.JobDuration.Observe(time.Since(start).Seconds())

	w.closeRun(ctx, run.ID, domain.StatusCompleted, result, nil, logger)
	emit(domain.CompleteEvent{TotalCollected: result.Collected, ReachedEnd: result.ReachedEnd})

	logger.Info("collection finished",
		"collected", result.Collected,
		"pages", result.Pages,
		"written", written.Written,
		"reached_end", result.ReachedEnd,
		"duration", time.Since(start),
	)
	return nil
}

// closeRun records the outcome even when the job's context is already
// cancelled.
func (w *Worker) closeRun(ctx context.Context, runID string, status domain.Status, result *collector.Result, runErr *string, logger *slog.Logger) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	collected := 0
	reachedEnd := false
	if result != nil {
		collected = result.Collected
		reachedEnd = result.ReachedEnd
	}
	if err := w.runs.Complete(writeCtx, runID, status, collected, reachedEnd, runErr); err != nil {
		logger.Error("complete run record", "run_id", runID, "error", err)
	}
}
