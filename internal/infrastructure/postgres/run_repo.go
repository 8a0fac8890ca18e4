package postgres

import (
	"context"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/monitor"
)

// RunRepository records one history row per collection job execution.
// Opened when the worker starts so a crash leaves a visible incomplete
// entry (completed_at = NULL).
type RunRepository struct {
	db  *Manager
	mon *monitor.Monitor
}

func NewRunRepository(db *Manager, mon *monitor.Monitor) *RunRepository {
	return &RunRepository{db: db, mon: mon}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.CollectionRun) (*domain.CollectionRun, error) {
	query := `
		INSERT INTO collection_runs (job_id, username, status, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	_, err := r.mon.TrackQuery("runs.create", func() (int, error) {
		row := r.db.Pool().QueryRow(ctx, query, run.JobID, run.Username, run.Status, run.StartedAt)
		if err := row.Scan(&run.ID); err != nil {
			return 0, classify("runs.create", err)
		}
		return 1, nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Complete closes the run with its outcome.
func (r *RunRepository) Complete(ctx context.Context, runID string, status domain.Status, collected int, reachedEnd bool, runErr *string) error {
	query := `
		UPDATE collection_runs
		SET status = $2, collected = $3, reached_end = $4, error = $5, completed_at = NOW()
		WHERE id = $1`

	_, err := r.mon.TrackQuery("runs.complete", func() (int, error) {
		tag, err := r.db.Pool().Exec(ctx, query, runID, status, collected, reachedEnd, runErr)
		if err != nil {
			return 0, classify("runs.complete", err)
		}
		return int(tag.RowsAffected()), nil
	})
	return err
}

// ListByUsername returns recent runs for an account, newest first.
func (r *RunRepository) ListByUsername(ctx context.Context, username string, limit int) ([]*domain.CollectionRun, error) {
	query := `
		SELECT id, job_id, username, status, collected, reached_end,
		       started_at, completed_at, error
		FROM collection_runs
		WHERE username = $1
		ORDER BY started_at DESC
		LIMIT $2`

	var runs []*domain.CollectionRun
	_, err := r.mon.TrackQuery("runs.list", func() (int, error) {
		rows, err := r.db.Pool().Query(ctx, query, username, limit)
		if err != nil {
			return 0, classify("runs.list", err)
		}
		defer rows.Close()

		for rows.Next() {
			var run domain.CollectionRun
			err := rows.Scan(&run.ID, &run.JobID, &run.Username, &run.Status,
				&run.Collected, &run.ReachedEnd, &run.StartedAt, &run.CompletedAt, &run.Error)
			if err != nil {
				return len(runs), classify("runs.list", err)
			}
			runs = append(runs, &run)
		}
		return len(runs), rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
