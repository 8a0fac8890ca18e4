package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateJob     = errors.New("collection already active or queued for this account")
	ErrQueueFull        = errors.New("job queue is full")
	ErrJobNotFound      = errors.New("job not found")
	ErrMaxRetries       = errors.New("max retries exceeded")
	ErrConnectionFailed = errors.New("database connection failed")
	ErrProfileNotFound  = errors.New("profile not found")
)

// DBErrorKind classifies a database failure. A single variant type with a
// kind enum — callers switch on Kind, not on concrete error types.
type DBErrorKind string

const (
	DBErrDuplicate   DBErrorKind = "duplicate"
	DBErrValidation  DBErrorKind = "validation"
	DBErrSchema      DBErrorKind = "schema"
	DBErrConnection  DBErrorKind = "connection"
	DBErrTransaction DBErrorKind = "transaction"
	DBErrUnknown     DBErrorKind = "unknown"
)

type DBError struct {
	Kind DBErrorKind
	Op   string // e.g. "tweets.write_chunk"
	Code string // underlying SQLSTATE, if any
	Err  error
}

func (e *DBError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

// DBErrorKindOf returns the kind of err if it is (or wraps) a DBError.
func DBErrorKindOf(err error) (DBErrorKind, bool) {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Kind, true
	}
	return "", false
}
