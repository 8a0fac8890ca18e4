package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/collector"
	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/tweet-pipeline/internal/twitterapi"
)

// ---- fakes ----

type fakeContentSource struct {
	pages   []*twitterapi.Page
	calls   int
	infoErr error
}

func (s *fakeContentSource) UserTweets(_ context.Context, _, _ string) (*twitterapi.Page, error) {
	if s.calls >= len(s.pages) {
		return &twitterapi.Page{}, nil
	}
	p := s.pages[s.calls]
	s.calls++
	return p, nil
}

func (s *fakeContentSource) UserInfo(_ context.Context, username string) (*domain.Profile, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return &domain.Profile{ID: "uid-" + username, Username: username}, nil
}

type fakeWriter struct {
	mu     sync.Mutex
	calls  int
	userID string
	count  int
	err    error
}

func (w *fakeWriter) WriteBatch(_ context.Context, userID string, tweets []*domain.Tweet) (postgres.BatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.userID = userID
	w.count = len(tweets)
	if w.err != nil {
		return postgres.BatchResult{Written: w.count / 2, Chunks: 1}, w.err
	}
	return postgres.BatchResult{Written: w.count, Chunks: 1}, nil
}

type fakeProfileStore struct {
	upserted *domain.Profile
	err      error
}

func (s *fakeProfileStore) Upsert(_ context.Context, p *domain.Profile) error {
	s.upserted = p
	return s.err
}

type fakeRunStore struct {
	mu        sync.Mutex
	created   *domain.CollectionRun
	completed []completedRun
}

type completedRun struct {
	runID      string
	status     domain.Status
	collected  int
	reachedEnd bool
	runErr     *string
}

func (s *fakeRunStore) Create(_ context.Context, run *domain.CollectionRun) (*domain.CollectionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = "run-1"
	s.created = run
	return run, nil
}

func (s *fakeRunStore) Complete(_ context.Context, runID string, status domain.Status, collected int, reachedEnd bool, runErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, completedRun{runID, status, collected, reachedEnd, runErr})
	return nil
}

func (s *fakeRunStore) lastCompleted(t *testing.T) completedRun {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.completed) == 0 {
		t.Fatal("run record was never completed")
	}
	return s.completed[len(s.completed)-1]
}

func newTestWorker(src *fakeContentSource, writer *fakeWriter, runs *fakeRunStore) (*Worker, *fakeProfileStore) {
	profiles := &fakeProfileStore{}
	cfg := collector.Config{PageSize: 3, CourtesyDelay: 0}
	return NewWorker(src, nil, writer, profiles, runs, cfg, slog.Default()), profiles
}

func workerJob() *domain.CollectionJob {
	return &domain.CollectionJob{ID: "job-1", Username: "acct", TargetCount: 10, SubmittedAt: time.Now()}
}

func sourcePage(hasNext bool, ids ...string) *twitterapi.Page {
	p := &twitterapi.Page{HasNextPage: hasNext, NextCursor: "next"}
	for _, id := range ids {
		p.Tweets = append(p.Tweets, &domain.Tweet{ID: id, CreatedAt: time.Now()})
	}
	return p
}

// ---- tests ----

func TestWorkerRun_HappyPath(t *testing.T) {
	src := &fakeContentSource{pages: []*twitterapi.Page{sourcePage(false, "t1", "t2")}}
	writer := &fakeWriter{}
	runs := &fakeRunStore{}
	w, profiles := newTestWorker(src, writer, runs)

	var events []domain.Event
	err := w.Run(context.Background(), workerJob(), func(e domain.Event) { events = append(events, e) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if profiles.upserted == nil || profiles.upserted.Username != "acct" {
		t.Errorf("profile not stored: %+v", profiles.upserted)
	}
	if writer.calls != 1 || writer.userID != "uid-acct" || writer.count != 2 {
		t.Errorf("unexpected write: calls=%d user=%s count=%d", writer.calls, writer.userID, writer.count)
	}

	done := runs.lastCompleted(t)
	if done.status != domain.StatusCompleted {
		t.Errorf("expected completed run, got %s", done.status)
	}
	if done.collected != 2 || !done.reachedEnd {
		t.Errorf("unexpected run outcome: %+v", done)
	}

	var complete *domain.CompleteEvent
	for _, e := range events {
		if c, ok := e.(domain.CompleteEvent); ok {
			complete = &c
		}
	}
	if complete == nil {
		t.Fatalf("expected a complete event, got %v", events)
	}
	if complete.TotalCollected != 2 || !complete.ReachedEnd {
		t.Errorf("unexpected complete event: %+v", complete)
	}
}

func TestWorkerRun_CancellationSkipsWrite(t *testing.T) {
	src := &fakeContentSource{pages: []*twitterapi.Page{sourcePage(true, "t1", "t2", "t3")}}
	writer := &fakeWriter{}
	runs := &fakeRunStore{}
	w, _ := newTestWorker(src, writer, runs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx, workerJob(), func(domain.Event) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if writer.calls != 0 {
		t.Error("cancelled job must not write to storage")
	}
	if done := runs.lastCompleted(t); done.status != domain.StatusCancelled {
		t.Errorf("expected cancelled run, got %s", done.status)
	}
}

func TestWorkerRun_WriteFailureMarksRunFailed(t *testing.T) {
	src := &fakeContentSource{pages: []*twitterapi.Page{sourcePage(false, "t1", "t2")}}
	writer := &fakeWriter{err: errors.New("chunk 1: connection reset")}
	runs := &fakeRunStore{}
	w, _ := newTestWorker(src, writer, runs)

	err := w.Run(context.Background(), workerJob(), func(domain.Event) {})
	if err == nil {
		t.Fatal("expected write error to propagate")
	}

	done := runs.lastCompleted(t)
	if done.status != domain.StatusFailed {
		t.Errorf("expected failed run, got %s", done.status)
	}
	if done.runErr == nil {
		t.Error("expected the run record to carry the error message")
	}
}

func TestWorkerRun_ProfileFetchFailureSkipsRunRecord(t *testing.T) {
	src := &fakeContentSource{infoErr: errors.New("upstream 500")}
	writer := &fakeWriter{}
	runs := &fakeRunStore{}
	w, _ := newTestWorker(src, writer, runs)

	err := w.Run(context.Background(), workerJob(), func(domain.Event) {})
	if err == nil {
		t.Fatal("expected profile fetch error")
	}
	if runs.created != nil {
		t.Error("run record must not be created before the profile is resolved")
	}
	if writer.calls != 0 {
		t.Error("nothing should be written when the profile fetch fails")
	}
}
