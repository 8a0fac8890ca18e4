package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestKindForCode(t *testing.T) {
	cases := []struct {
		code string
		want domain.DBErrorKind
	}{
		{"23505", domain.DBErrDuplicate},
		{"23503", domain.DBErrValidation}, // foreign key
		{"23502", domain.DBErrValidation}, // not null
		{"22001", domain.DBErrValidation}, // string too long
		{"42P01", domain.DBErrSchema},     // undefined table
		{"42703", domain.DBErrSchema},     // undefined column
		{"08006", domain.DBErrConnection},
		{"08000", domain.DBErrConnection},
		{"40001", domain.DBErrTransaction}, // serialization failure
		{"40P01", domain.DBErrTransaction}, // deadlock
		{"25P02", domain.DBErrTransaction}, // aborted tx
		{"57014", domain.DBErrUnknown},
		{"", domain.DBErrUnknown},
	}

	for _, tc := range cases {
		if got := kindForCode(tc.code); got != tc.want {
			t.Errorf("code %q: want %s, got %s", tc.code, tc.want, got)
		}
	}
}

func TestClassify_PgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	wrapped := fmt.Errorf("insert: %w", pgErr)

	dbErr := classify("upsert_tweet", wrapped)
	if dbErr.Kind != domain.DBErrDuplicate {
		t.Errorf("want duplicate kind, got %s", dbErr.Kind)
	}
	if dbErr.Op != "upsert_tweet" || dbErr.Code != "23505" {
		t.Errorf("unexpected classification: %+v", dbErr)
	}
	if !errors.Is(dbErr, pgErr) {
		t.Error("original error must stay reachable through Unwrap")
	}
}

func TestClassify_ContextErrorsAreConnectionKind(t *testing.T) {
	for _, err := range []error{context.DeadlineExceeded, context.Canceled} {
		dbErr := classify("query", fmt.Errorf("wrapped: %w", err))
		if dbErr.Kind != domain.DBErrConnection {
			t.Errorf("%v: want connection kind, got %s", err, dbErr.Kind)
		}
	}
}

func TestClassify_UnknownError(t *testing.T) {
	dbErr := classify("query", errors.New("mystery"))
	if dbErr.Kind != domain.DBErrUnknown {
		t.Errorf("want unknown kind, got %s", dbErr.Kind)
	}
}

func TestHeuristicMaxConns_HasFloor(t *testing.T) {
	if n := HeuristicMaxConns(); n < 2 {
		t.Errorf("pool sizing must never go below 2, got %d", n)
	}
}
