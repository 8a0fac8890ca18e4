package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/monitor"
	"github.com/jackc/pgx/v5"
)

type ProfileRepository struct {
	db  *Manager
	mon *monitor.Monitor
}

func NewProfileRepository(db *Manager, mon *monitor.Monitor) *ProfileRepository {
	return &ProfileRepository{db: db, mon: mon}
}

// Upsert inserts the profile or refreshes its mutable fields. AutoRefresh
// is owner-controlled and deliberately not overwritten here.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (id, username, name, description, followers_count, tweet_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username        = EXCLUDED.username,
			name            = EXCLUDED.name,
			description     = EXCLUDED.description,
			followers_count = EXCLUDED.followers_count,
			tweet_count     = EXCLUDED.tweet_count,
			updated_at      = NOW()`

	_, err := r.mon.TrackQuery("profiles.upsert", func() (int, error) {
		tag, err := r.db.Pool().Exec(ctx, query,
			p.ID, p.Username, p.Name, p.Description, p.FollowersCount, p.TweetCount)
		if err != nil {
			return 0, classify("profiles.upsert", err)
		}
		return int(tag.RowsAffected()), nil
	})
	return err
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	query := `
		SELECT id, username, name, description, followers_count, tweet_count,
		       auto_refresh, created_at, updated_at
		FROM profiles
		WHERE username = $1`

	var p domain.Profile
	_, err := r.mon.TrackQuery("profiles.get", func() (int, error) {
		row := r.db.Pool().QueryRow(ctx, query, username)
		err := row.Scan(&p.ID, &p.Username, &p.Name, &p.Description,
			&p.FollowersCount, &p.TweetCount, &p.AutoRefresh, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, domain.ErrProfileNotFound
			}
			return 0, classify("profiles.get", err)
		}
		return 1, nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListAutoRefresh returns profiles the refresher should re-collect.
func (r *ProfileRepository) ListAutoRefresh(ctx context.Context) ([]*domain.Profile, error) {
	query := `
		SELECT id, username, name, description, followers_count, tweet_count,
		       auto_refresh, created_at, updated_at
		FROM profiles
		WHERE auto_refresh
		ORDER BY updated_at ASC`

	var profiles []*domain.Profile
	_, err := r.mon.TrackQuery("profiles.list_auto_refresh", func() (int, error) {
		rows, err := r.db.Pool().Query(ctx, query)
		if err != nil {
			return 0, classify("profiles.list_auto_refresh", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p domain.Profile
			err := rows.Scan(&p.ID, &p.Username, &p.Name, &p.Description,
				&p.FollowersCount, &p.TweetCount, &p.AutoRefresh, &p.CreatedAt, &p.UpdatedAt)
			if err != nil {
				return len(profiles), fmt.Errorf("scan profile: %w", err)
			}
			profiles = append(profiles, &p)
		}
		return len(profiles), rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
