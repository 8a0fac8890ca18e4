package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/usecase"
	"github.com/gin-gonic/gin"
)

type TweetHandler struct {
	collections *usecase.CollectionUsecase
	logger      *slog.Logger
}

func NewTweetHandler(collections *usecase.CollectionUsecase, logger *slog.Logger) *TweetHandler {
	return &TweetHandler{
		collections: collections,
		logger:      logger.With("component", "tweet_handler"),
	}
}

type profileResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	FollowersCount int       `json:"followers_count"`
	TweetCount     int       `json:"tweet_count"`
	AutoRefresh    bool      `json:"auto_refresh"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (h *TweetHandler) GetProfile(ctx *gin.Context) {
	username := ctx.Param("username")

	p, err := h.collections.Profile(ctx.Request.Context(), username)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errProfileNotFound})
			return
		}
		h.logger.Error("get profile", "username", username, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, profileResponse{
		ID:             p.ID,
		Username:       p.Username,
		Name:           p.Name,
		Description:    p.Description,
		FollowersCount: p.FollowersCount,
		TweetCount:     p.TweetCount,
		AutoRefresh:    p.AutoRefresh,
		UpdatedAt:      p.UpdatedAt,
	})
}

type tweetResponse struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	CreatedAt    time.Time      `json:"created_at"`
	URL          string         `json:"url"`
	IsReply      bool           `json:"is_reply"`
	RetweetCount int            `json:"retweet_count"`
	ReplyCount   int            `json:"reply_count"`
	LikeCount    int            `json:"like_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type listTweetsResponse struct {
	Tweets []tweetResponse `json:"tweets"`
	Total  int             `json:"total"`
}

func (h *TweetHandler) ListTweets(ctx *gin.Context) {
	username := ctx.Param("username")
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	var cursorTime *time.Time
	if raw := ctx.Query("cursor_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "cursor_time must be RFC 3339"})
			return
		}
		cursorTime = &t
	}

	page, err := h.collections.Tweets(ctx.Request.Context(), username, cursorTime, ctx.Query("cursor_id"), limit)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errProfileNotFound})
			return
		}
		h.logger.Error("list tweets", "username", username, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := listTweetsResponse{
		Tweets: make([]tweetResponse, 0, len(page.Tweets)),
		Total:  page.Total,
	}
	for _, t := range page.Tweets {
		resp.Tweets = append(resp.Tweets, tweetResponse{
			ID:           t.ID,
			Text:         t.Text,
			CreatedAt:    t.CreatedAt,
			URL:          t.URL,
			IsReply:      t.IsReply,
			RetweetCount: t.RetweetCount,
			ReplyCount:   t.ReplyCount,
			LikeCount:    t.LikeCount,
			Metadata:     t.Metadata,
		})
	}
	ctx.JSON(http.StatusOK, resp)
}
