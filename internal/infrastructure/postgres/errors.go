package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

// classify maps a low-level database failure onto the single DBError
// variant type. Callers switch on Kind, never on concrete error types.
func classify(op string, err error) *domain.DBError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &domain.DBError{
			Kind: kindForCode(pgErr.Code),
			Op:   op,
			Code: pgErr.Code,
			Err:  err,
		}
	}

	kind := domain.DBErrUnknown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = domain.DBErrConnection
	}
	return &domain.DBError{Kind: kind, Op: op, Err: err}
}

func kindForCode(code string) domain.DBErrorKind {
	switch {
	case code == "23505":
		return domain.DBErrDuplicate
	case strings.HasPrefix(code, "23"), strings.HasPrefix(code, "22"):
		return domain.DBErrValidation
	case strings.HasPrefix(code, "42"):
		return domain.DBErrSchema
	case strings.HasPrefix(code, "08"):
		return domain.DBErrConnection
	case code == "40001", code == "40P01", code == "25P02":
		return domain.DBErrTransaction
	default:
		return domain.DBErrUnknown
	}
}
