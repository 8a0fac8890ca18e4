package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ErlanBelekov/tweet-pipeline/internal/requestid"
)

func newCapturedLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	return slog.New(NewContextHandler(inner)), &buf
}

func TestContextHandler_StampsRequestAndJobIDs(t *testing.T) {
	logger, buf := newCapturedLogger()

	ctx := requestid.WithRequestID(context.Background(), "req-1")
	ctx = requestid.WithJobID(ctx, "job-1")
	logger.InfoContext(ctx, "hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") {
		t.Errorf("expected request_id attr, got %q", out)
	}
	if !strings.Contains(out, "job_id=job-1") {
		t.Errorf("expected job_id attr, got %q", out)
	}
}

func TestContextHandler_SkipsAbsentIDs(t *testing.T) {
	logger, buf := newCapturedLogger()

	logger.InfoContext(context.Background(), "hello")

	out := buf.String()
	if strings.Contains(out, "request_id") || strings.Contains(out, "job_id") {
		t.Errorf("no attrs expected without context values, got %q", out)
	}
}
