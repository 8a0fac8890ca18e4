package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/monitor"
	"github.com/jackc/pgx/v5"
)

const upsertTweetSQL = `
	INSERT INTO tweets (
		id, user_id, text, created_at, url, is_reply, conversation_id,
		retweet_count, reply_count, like_count, metadata
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		text          = EXCLUDED.text,
		url           = EXCLUDED.url,
		is_reply      = EXCLUDED.is_reply,
		retweet_count = EXCLUDED.retweet_count,
		reply_count   = EXCLUDED.reply_count,
		like_count    = EXCLUDED.like_count,
		metadata      = COALESCE(tweets.metadata, '{}'::jsonb) || EXCLUDED.metadata,
		updated_at    = NOW()`

// TweetRepository is the transactional batch writer. Records are persisted
// in fixed-size chunks, one transaction per chunk, via idempotent upserts.
type TweetRepository struct {
	db        *Manager
	mon       *monitor.Monitor
	chunkSize int

	// writeFn points at writeChunk; tests swap it to exercise the
	// chunking loop without a live pool.
	writeFn func(ctx context.Context, userID string, chunk []*domain.Tweet) error
}

func NewTweetRepository(db *Manager, mon *monitor.Monitor, chunkSize int) *TweetRepository {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	r := &TweetRepository{db: db, mon: mon, chunkSize: chunkSize}
	r.writeFn = r.writeChunk
	return r
}

type BatchResult struct {
	Written int
	Chunks  int
}

// WriteBatch persists tweets for one account. A chunk failure rolls back
// only that chunk's transaction; prior chunks stay committed, so the
// returned result reports partial success alongside the error. Remaining
// chunks are not attempted after a failure — the idempotent upsert makes
// a resubmit safe.
func (r *TweetRepository) WriteBatch(ctx context.Context, userID string, tweets []*domain.Tweet) (BatchResult, error) {
	var res BatchResult

	for start := 0; start < len(tweets); start += r.chunkSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := min(start+r.chunkSize, len(tweets))
		if err := r.writeFn(ctx, userID, tweets[start:end]); err != nil {
			return res, fmt.Errorf("chunk %d: %w", res.Chunks+1, err)
		}
		res.Written += end - start
		res.Chunks++
	}

	return res, nil
}

func (r *TweetRepository) writeChunk(ctx context.Context, userID string, chunk []*domain.Tweet) error {
	_, err := r.mon.TrackTx("tweets.write_chunk", func() (int, error) {
		conn, err := r.db.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		defer conn.Release()

		tx, err := conn.Begin(ctx)
		if err != nil {
			return 0, classify("tweets.begin", err)
		}
		defer func() { _ = tx.Rollback(ctx) }() // no-op after commit

		batch := &pgx.Batch{}
		for _, t := range chunk {
			batch.Queue(upsertTweetSQL,
				t.ID, userID, t.Text, t.CreatedAt, t.URL, t.IsReply, t.ConversationID,
				t.RetweetCount, t.ReplyCount, t.LikeCount, t.Metadata,
			)
		}

		br := tx.SendBatch(ctx, batch)
		rows := 0
		for range chunk {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return rows, classify("tweets.upsert", err)
			}
			rows += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return rows, classify("tweets.upsert", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return rows, classify("tweets.commit", err)
		}
		return rows, nil
	})
	return err
}

type ListTweetsInput struct {
	UserID     string
	CursorTime *time.Time // nil = first page
	CursorID   string     // used only when CursorTime is non-nil
	Limit      int
}

// ListByUser returns stored tweets, newest first, with keyset pagination.
func (r *TweetRepository) ListByUser(ctx context.Context, input ListTweetsInput) ([]*domain.Tweet, error) {
	args := []any{input.UserID}
	where := []string{"user_id = $1"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT id, user_id, text, created_at, url, is_reply, conversation_id,
		       retweet_count, reply_count, like_count, metadata
		FROM tweets
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	var tweets []*domain.Tweet
	_, err := r.mon.TrackQuery("tweets.list", func() (int, error) {
		rows, err := r.db.Pool().Query(ctx, query, args...)
		if err != nil {
			return 0, classify("tweets.list", err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTweet(rows)
			if err != nil {
				return len(tweets), err
			}
			tweets = append(tweets, t)
		}
		return len(tweets), rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tweets, nil
}

// CountByUser returns how many tweets are stored for the account.
func (r *TweetRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	_, err := r.mon.TrackQuery("tweets.count", func() (int, error) {
		row := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM tweets WHERE user_id = $1`, userID)
		if err := row.Scan(&count); err != nil {
			return 0, classify("tweets.count", err)
		}
		return 1, nil
	})
	return count, err
}

func scanTweet(rows pgx.Rows) (*domain.Tweet, error) {
	var t domain.Tweet
	err := rows.Scan(
		&t.ID, &t.UserID, &t.Text, &t.CreatedAt, &t.URL, &t.IsReply, &t.ConversationID,
		&t.RetweetCount, &t.ReplyCount, &t.LikeCount, &t.Metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan tweet: %w", err)
	}
	return &t, nil
}
