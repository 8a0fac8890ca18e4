package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type ProfileLister interface {
	ListAutoRefresh(ctx context.Context) ([]*domain.Profile, error)
}

// Refresher re-submits collection jobs for auto-refresh profiles on a cron
// schedule. Duplicate rejections are expected (the account may already be
// collecting) and are not errors.
type Refresher struct {
	sched    *Scheduler
	profiles ProfileLister
	spec     string
	target   int
	logger   *slog.Logger
}

func NewRefresher(sched *Scheduler, profiles ProfileLister, spec string, target int, logger *slog.Logger) *Refresher {
	return &Refresher{
		sched:    sched,
		profiles: profiles,
		spec:     spec,
		target:   target,
		logger:   logger.With("component", "refresher"),
	}
}

// Start runs the cron loop until ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.spec, func() { r.refresh(ctx) }); err != nil {
		return err
	}
	c.Start()
	r.logger.Info("refresher started", "schedule", r.spec)

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	r.logger.Info("refresher shut down")
	return nil
}

func (r *Refresher) refresh(ctx context.Context) {
	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	profiles, err := r.profiles.ListAutoRefresh(listCtx)
	if err != nil {
		r.logger.Error("list auto-refresh profiles", "error", err)
		return
	}
	if len(profiles) == 0 {
		return
	}

	submitted := 0
	for _, p := range profiles {
		events, err := r.sched.Submit(&domain.CollectionJob{
			ID:          uuid.NewString(),
			Username:    p.Username,
			TargetCount: r.target,
			SubmittedAt: time.Now(),
		})
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateJob) {
				continue
			}
			if errors.Is(err, domain.ErrQueueFull) {
				r.logger.Warn("queue full, deferring remaining refreshes", "submitted", submitted)
				return
			}
			r.logger.Error("submit refresh job", "username", p.Username, "error", err)
			continue
		}
		submitted++
		go r.drain(p.Username, events)
	}
	if submitted > 0 {
		r.logger.Info("refresh jobs submitted", "count", submitted)
	}
}

// drain consumes the job's events so the worker never blocks on delivery;
// refresh runs have no interactive submitter.
func (r *Refresher) drain(username string, events <-chan domain.Event) {
	for e := range events {
		switch ev := e.(type) {
		case domain.WarningEvent:
			r.logger.Warn("refresh rate limited", "username", username, "reset_at", ev.ResetAt)
		case domain.ErrorEvent:
			r.logger.Warn("refresh failed", "username", username, "error", ev.Message)
		case domain.CompleteEvent:
			r.logger.Info("refresh complete", "username", username, "collected", ev.TotalCollected)
		case domain.ProgressEvent, domain.CancelledEvent:
			// not interesting for scheduled refreshes
		}
	}
}
