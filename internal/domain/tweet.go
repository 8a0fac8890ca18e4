package domain

import (
	"time"
)

// Tweet is the unit of collection. Identity is the external tweet ID;
// within one collection run only the newest version of an ID is retained.
type Tweet struct {
	ID             string
	UserID         string
	Text           string
	CreatedAt      time.Time
	URL            string
	IsReply        bool
	ConversationID string

	RetweetCount int
	ReplyCount   int
	LikeCount    int

	// Metadata holds free-form source fields we don't map to columns.
	// Persisted as JSONB; merged (not replaced) on upsert.
	Metadata map[string]any
}

// Valid reports whether the tweet carries the minimum required identity.
// Invalid items are dropped at ingestion, never retried.
func (t *Tweet) Valid() bool {
	return t.ID != ""
}

type Profile struct {
	ID          string
	Username    string
	Name        string
	Description string

	FollowersCount int
	TweetCount     int

	// AutoRefresh marks profiles the refresher re-collects on schedule.
	AutoRefresh bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
