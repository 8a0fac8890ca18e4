// Package twitterapi is the HTTP client for the external per-account
// content API. Every call goes through the shared rate limiter and the
// retry combinator; callers receive domain types, never raw payloads.
package twitterapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/ratelimit"
	"github.com/ErlanBelekov/tweet-pipeline/internal/retry"
)

const (
	EndpointUserTweets = "/user/tweets"
	EndpointUserInfo   = "/user/info"
)

// APIError is a non-2xx response from the source API.
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status code: %d", e.Endpoint, e.StatusCode)
}

// Transient reports whether the call is worth retrying.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Page is one cursor step of a user's timeline.
type Page struct {
	Tweets      []*domain.Tweet
	HasNextPage bool
	NextCursor  string
}

type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *ratelimit.Limiter
	policy  retry.Policy
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey string, limiter *ratelimit.Limiter, policy retry.Policy, logger *slog.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: limiter,
		policy:  policy,
		logger:  logger.With("component", "twitterapi"),
	}
}

// UserTweets fetches one page of the account's timeline. An empty cursor
// requests the first page.
func (c *Client) UserTweets(ctx context.Context, username, cursor string) (*Page, error) {
	params := url.Values{"userName": {username}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var payload tweetsResponse
	if err := c.call(ctx, EndpointUserTweets, params, &payload); err != nil {
		return nil, err
	}

	page := &Page{
		Tweets:      make([]*domain.Tweet, 0, len(payload.Data.Tweets)),
		HasNextPage: payload.HasNextPage,
		NextCursor:  payload.NextCursor,
	}
	for _, raw := range payload.Data.Tweets {
		page.Tweets = append(page.Tweets, raw.toDomain())
	}
	return page, nil
}

// UserInfo fetches the account's profile.
func (c *Client) UserInfo(ctx context.Context, username string) (*domain.Profile, error) {
	params := url.Values{"userName": {username}}

	var payload userInfoResponse
	if err := c.call(ctx, EndpointUserInfo, params, &payload); err != nil {
		return nil, err
	}
	if payload.Data.ID == "" {
		return nil, domain.ErrProfileNotFound
	}

	return &domain.Profile{
		ID:             payload.Data.ID,
		Username:       payload.Data.UserName,
		Name:           payload.Data.Name,
		Description:    payload.Data.Description,
		FollowersCount: payload.Data.Followers,
		TweetCount:     payload.Data.StatusesCount,
	}, nil
}

// call wraps getJSON with the generic retry budget, then grants one extra
// attempt for a rate-limited response once the known reset time has passed.
// That extra retry is deliberately outside the backoff budget.
func (c *Client) call(ctx context.Context, endpoint string, params url.Values, out any) error {
	policy := c.policy
	policy.Retryable = transient

	err := retry.Do(ctx, policy, "fetch "+endpoint, func() error {
		return c.getJSON(ctx, endpoint, params, out)
	})
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.RateLimited() {
		return err
	}
	st, ok := c.limiter.Snapshot(endpoint)
	if !ok || time.Until(st.ResetAt) <= 0 {
		return err
	}

	c.logger.Warn("rate limited, retrying once after reset", "endpoint", endpoint, "reset_at", st.ResetAt)
	if serr := retry.Sleep(ctx, time.Until(st.ResetAt)); serr != nil {
		return serr
	}
	if rerr := c.getJSON(ctx, endpoint, params, out); rerr != nil {
		return fmt.Errorf("fetch %s: post-reset retry: %w", endpoint, rerr)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if _, err := c.limiter.BeforeCall(ctx, endpoint); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.limiter.AfterCall(endpoint, resp.Header)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	// Network-level failures (timeouts, resets) come through as url.Error.
	return true
}
