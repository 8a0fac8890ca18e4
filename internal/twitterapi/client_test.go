package twitterapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/ratelimit"
	"github.com/ErlanBelekov/tweet-pipeline/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	limiter := ratelimit.NewLimiter(slog.Default())
	policy := retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}
	return NewClient(srv.URL, "test-key", limiter, policy, slog.Default())
}

func TestUserTweets_ParsesPage(t *testing.T) {
	var gotKey, gotUser string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotUser = r.URL.Query().Get("userName")
		w.Header().Set("x-rate-limit-limit", "100")
		w.Header().Set("x-rate-limit-remaining", "99")
		w.Header().Set("x-rate-limit-reset", "1900000000")
		_, _ = w.Write([]byte(`{
			"data": {"tweets": [
				{"id": "1", "text": "hello", "createdAt": "2025-06-01T12:00:00Z", "author": {"id": "u1"}, "lang": "en", "viewCount": 12},
				{"id": "2", "text": "world", "createdAt": "Mon Jun 02 12:00:00 +0000 2025", "author": {"id": "u1"}}
			]},
			"has_next_page": true,
			"next_cursor": "abc"
		}`))
	})

	page, err := c.UserTweets(context.Background(), "acct", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("missing api key header, got %q", gotKey)
	}
	if gotUser != "acct" {
		t.Errorf("unexpected userName param %q", gotUser)
	}
	if len(page.Tweets) != 2 {
		t.Fatalf("expected 2 tweets, got %d", len(page.Tweets))
	}
	if !page.HasNextPage || page.NextCursor != "abc" {
		t.Errorf("unexpected pagination: hasNext=%v cursor=%q", page.HasNextPage, page.NextCursor)
	}

	first := page.Tweets[0]
	if first.ID != "1" || first.UserID != "u1" || first.Text != "hello" {
		t.Errorf("unexpected tweet: %+v", first)
	}
	if first.Metadata["lang"] != "en" {
		t.Errorf("expected lang in metadata, got %v", first.Metadata)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !first.CreatedAt.Equal(want) {
		t.Errorf("created_at: want %v, got %v", want, first.CreatedAt)
	}
	// Legacy Ruby-style timestamp on the second tweet.
	if page.Tweets[1].CreatedAt.IsZero() {
		t.Error("legacy timestamp format should parse")
	}

	st, ok := c.limiter.Snapshot(EndpointUserTweets)
	if !ok || st.Remaining != 99 {
		t.Errorf("rate limit headers not captured: %+v", st)
	}
}

func TestUserTweets_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data": {"tweets": []}, "has_next_page": false}`))
	})

	page, err := c.UserTweets(context.Background(), "acct", "")
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if page.HasNextPage {
		t.Error("unexpected next page")
	}
}

func TestUserTweets_ExhaustedRetriesReturnTypedError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.UserTweets(context.Background(), "acct", "")
	if !errors.Is(err, domain.ErrMaxRetries) {
		t.Fatalf("expected ErrMaxRetries, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected the API error to be wrapped, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestUserTweets_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.UserTweets(context.Background(), "acct", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 API error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", calls.Load())
	}
}

func TestUserTweets_RateLimitedRetriesOnceAfterReset(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= 3 {
			// Exhaust the normal retry budget with 429s that advertise an
			// imminent reset.
			w.Header().Set("x-rate-limit-limit", "100")
			w.Header().Set("x-rate-limit-remaining", "0")
			w.Header().Set("x-rate-limit-reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data": {"tweets": []}, "has_next_page": false}`))
	})

	_, err := c.UserTweets(context.Background(), "acct", "")
	if err != nil {
		t.Fatalf("post-reset retry should succeed, got %v", err)
	}
	if calls.Load() != 4 {
		t.Errorf("expected 3 budgeted attempts plus 1 post-reset retry, got %d", calls.Load())
	}
}

func TestUserInfo_ReturnsProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"id": "u1", "userName": "acct", "name": "Account", "followers": 10, "statusesCount": 200}}`))
	})

	p, err := c.UserInfo(context.Background(), "acct")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "u1" || p.Username != "acct" || p.FollowersCount != 10 || p.TweetCount != 200 {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestUserInfo_EmptyDataIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {}}`))
	})

	_, err := c.UserInfo(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}
