package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/tweet-pipeline/internal/scheduler"
	"github.com/google/uuid"
)

type TweetStore interface {
	ListByUser(ctx context.Context, input postgres.ListTweetsInput) ([]*domain.Tweet, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type ProfileStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
}

type RunStore interface {
	ListByUsername(ctx context.Context, username string, limit int) ([]*domain.CollectionRun, error)
}

type CollectionUsecase struct {
	sched         *scheduler.Scheduler
	tweets        TweetStore
	profiles      ProfileStore
	runs          RunStore
	defaultTarget int
	logger        *slog.Logger
}

func NewCollectionUsecase(
	sched *scheduler.Scheduler,
	tweets TweetStore,
	profiles ProfileStore,
	runs RunStore,
	defaultTarget int,
	logger *slog.Logger,
) *CollectionUsecase {
	return &CollectionUsecase{
		sched:         sched,
		tweets:        tweets,
		profiles:      profiles,
		runs:          runs,
		defaultTarget: defaultTarget,
		logger:        logger.With("component", "collection_usecase"),
	}
}

// Submit admits a collection job for the account. Typed scheduler errors
// (duplicate, queue full) pass through for the handler to map onto status
// codes.
func (u *CollectionUsecase) Submit(ctx context.Context, username string, targetCount int) (*domain.CollectionJob, error) {
	if targetCount <= 0 {
		targetCount = u.defaultTarget
	}

	job := &domain.CollectionJob{
		ID:          uuid.NewString(),
		Username:    username,
		TargetCount: targetCount,
		Status:      domain.StatusQueued,
		SubmittedAt: time.Now(),
	}

	events, err := u.sched.Submit(job)
	if err != nil {
		return nil, err
	}

	go u.drain(job, events)
	return job, nil
}

// drain consumes the job's event stream into logs; the REST surface polls
// status instead of streaming.
func (u *CollectionUsecase) drain(job *domain.CollectionJob, events <-chan domain.Event) {
	logger := u.logger.With("job_id", job.ID, "username", job.Username)
	for e := range events {
		switch ev := e.(type) {
		case domain.ProgressEvent:
			logger.Debug("progress", "percent", ev.Percent, "phase", ev.Phase, "count", ev.Count)
		case domain.WarningEvent:
			logger.Warn(ev.Message, "reset_at", ev.ResetAt)
		case domain.CompleteEvent:
			logger.Info("collection complete", "collected", ev.TotalCollected, "reached_end", ev.ReachedEnd)
		case domain.ErrorEvent:
			logger.Warn("collection error", "error", ev.Message)
		case domain.CancelledEvent:
			logger.Info("collection cancelled")
		}
	}
}

func (u *CollectionUsecase) Terminate(jobID string) error {
	return u.sched.Terminate(jobID)
}

func (u *CollectionUsecase) Status() scheduler.Status {
	return u.sched.Status()
}

func (u *CollectionUsecase) Profile(ctx context.Context, username string) (*domain.Profile, error) {
	p, err := u.profiles.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

type TweetsPage struct {
	Tweets []*domain.Tweet
	Total  int
}

// Tweets lists stored tweets for an account with keyset pagination.
func (u *CollectionUsecase) Tweets(ctx context.Context, username string, cursorTime *time.Time, cursorID string, limit int) (*TweetsPage, error) {
	profile, err := u.profiles.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	tweets, err := u.tweets.ListByUser(ctx, postgres.ListTweetsInput{
		UserID:     profile.ID,
		CursorTime: cursorTime,
		CursorID:   cursorID,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list tweets: %w", err)
	}

	total, err := u.tweets.CountByUser(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("count tweets: %w", err)
	}

	return &TweetsPage{Tweets: tweets, Total: total}, nil
}

func (u *CollectionUsecase) Runs(ctx context.Context, username string, limit int) ([]*domain.CollectionRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := u.runs.ListByUsername(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
