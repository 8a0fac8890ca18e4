package twitterapi

import (
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
)

type tweetsResponse struct {
	Data struct {
		Tweets []tweetPayload `json:"tweets"`
	} `json:"data"`
	HasNextPage bool   `json:"has_next_page"`
	NextCursor  string `json:"next_cursor"`
}

type tweetPayload struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Text           string `json:"text"`
	CreatedAt      string `json:"createdAt"`
	IsReply        bool   `json:"isReply"`
	ConversationID string `json:"conversationId"`
	RetweetCount   int    `json:"retweetCount"`
	ReplyCount     int    `json:"replyCount"`
	LikeCount      int    `json:"likeCount"`
	ViewCount      int    `json:"viewCount"`
	Lang           string `json:"lang"`
	Author         struct {
		ID string `json:"id"`
	} `json:"author"`
}

type userInfoResponse struct {
	Data struct {
		ID            string `json:"id"`
		UserName      string `json:"userName"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		Followers     int    `json:"followers"`
		StatusesCount int    `json:"statusesCount"`
	} `json:"data"`
}

func (p tweetPayload) toDomain() *domain.Tweet {
	return &domain.Tweet{
		ID:             p.ID,
		UserID:         p.Author.ID,
		Text:           p.Text,
		CreatedAt:      parseCreatedAt(p.CreatedAt),
		URL:            p.URL,
		IsReply:        p.IsReply,
		ConversationID: p.ConversationID,
		RetweetCount:   p.RetweetCount,
		ReplyCount:     p.ReplyCount,
		LikeCount:      p.LikeCount,
		Metadata: map[string]any{
			"lang":       p.Lang,
			"view_count": p.ViewCount,
		},
	}
}

// The source emits Twitter's legacy Ruby timestamp format; newer endpoints
// use RFC 3339. Accept both, zero time when neither parses.
func parseCreatedAt(s string) time.Time {
	if t, err := time.Parse(time.RubyDate, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
