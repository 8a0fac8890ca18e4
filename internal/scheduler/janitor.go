package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/infrastructure/postgres"
)

// Janitor periodically probes pool health, trims idle connections above the
// configured minimum, and exports pool occupancy.
type Janitor struct {
	db       *postgres.Manager
	interval time.Duration
	logger   *slog.Logger
}

func NewJanitor(db *postgres.Manager, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		db:       db,
		interval: interval,
		logger:   logger.With("component", "janitor"),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", "interval", j.interval)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor shut down")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	health := j.db.HealthCheck(ctx)
	if !health.Healthy {
		j.logger.Warn("pool unhealthy", "error", health.Error)
	}

	closed := j.db.Cleanup(ctx)
	if closed > 0 {
		j.logger.Info("trimmed idle connections", "closed", closed)
	}

	j.db.ObserveOccupancy()
}
