// Package requestid carries request-scoped identifiers (HTTP request ID,
// collection job ID) through context for log enrichment.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type requestKey struct{}
type jobKey struct{}

// New generates a random UUID v4 identifier.
func New() string {
	return uuid.NewString()
}

// WithRequestID returns a copy of ctx with the request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestKey{}, id)
}

// FromContext extracts the request ID from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestKey{}).(string)
	return id
}

// WithJobID returns a copy of ctx with the collection job ID attached.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobKey{}, id)
}

// JobFromContext extracts the job ID from ctx. Returns "" if absent.
func JobFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobKey{}).(string)
	return id
}
