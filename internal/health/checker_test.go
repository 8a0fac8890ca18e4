package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// ---- fakes ----

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

func newTestChecker(pingErr error) *Checker {
	return NewChecker(&mockPinger{err: pingErr}, slog.Default(), prometheus.NewRegistry())
}

// ---- tests ----

func TestLiveness_AlwaysUp(t *testing.T) {
	c := newTestChecker(errors.New("db is down"))

	result := c.Liveness(context.Background())
	if result.Status != "up" {
		t.Errorf("liveness must not depend on dependencies, got %q", result.Status)
	}
}

func TestReadiness_AllUp(t *testing.T) {
	c := newTestChecker(nil)

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Errorf("expected up, got %q", result.Status)
	}
	if result.Checks["postgres"].Status != "up" {
		t.Errorf("expected postgres up, got %+v", result.Checks["postgres"])
	}
}

func TestReadiness_DatabaseDown(t *testing.T) {
	c := newTestChecker(errors.New("connection refused"))

	result := c.Readiness(context.Background())
	if result.Status != "down" {
		t.Errorf("expected down, got %q", result.Status)
	}
	check := result.Checks["postgres"]
	if check.Status != "down" || check.Error != "connection refused" {
		t.Errorf("unexpected postgres check: %+v", check)
	}
}

func TestReadinessHandler_StatusCodes(t *testing.T) {
	cases := []struct {
		name    string
		pingErr error
		want    int
	}{
		{"healthy", nil, http.StatusOK},
		{"db down", errors.New("boom"), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestChecker(tc.pingErr)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			c.ReadinessHandler().ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected json content type, got %q", ct)
			}
		})
	}
}

func TestLivenessHandler_Returns200(t *testing.T) {
	c := newTestChecker(errors.New("db is down"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	c.LivenessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
