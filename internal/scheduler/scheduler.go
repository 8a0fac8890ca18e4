// Package scheduler bounds concurrent collection jobs, queues overflow in
// FIFO order, and relays worker lifecycle events to submitters.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/metrics"
	"github.com/ErlanBelekov/tweet-pipeline/internal/requestid"
)

// Runner executes one collection job. Implemented by *Worker; faked in tests.
type Runner interface {
	Run(ctx context.Context, job *domain.CollectionJob, emit func(domain.Event)) error
}

type Config struct {
	MaxWorkers    int
	MaxQueue      int
	TerminateWait time.Duration
	EventBuffer   int
}

func DefaultConfig() Config {
	return Config{
		MaxWorkers:    16,
		MaxQueue:      100,
		TerminateWait: 5 * time.Second,
		EventBuffer:   32,
	}
}

type slot struct {
	job    *domain.CollectionJob
	cancel context.CancelFunc
	done   chan struct{}
	events chan domain.Event
}

type queued struct {
	job    *domain.CollectionJob
	events chan domain.Event
}

type Scheduler struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*slot  // job ID -> running slot
	byUser map[string]string // lowercased username -> job ID, active or queued
	queue  []*queued

	wg sync.WaitGroup
}

func New(cfg Config, runner Runner, logger *slog.Logger) *Scheduler {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = DefaultConfig().MaxQueue
	}
	if cfg.TerminateWait <= 0 {
		cfg.TerminateWait = DefaultConfig().TerminateWait
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		logger: logger.With("component", "scheduler"),
		active: make(map[string]*slot),
		byUser: make(map[string]string),
	}
}

// Submit admits a job: starts it immediately when a slot is free, queues it
// FIFO otherwise. Rejects with a typed error when a job for the same account
// is already active or queued, or when the queue is full. The returned
// channel delivers the job's lifecycle events and is closed when the job
// finishes.
func (s *Scheduler) Submit(job *domain.CollectionJob) (<-chan domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(job.Username)
	if _, dup := s.byUser[key]; dup {
		return nil, domain.ErrDuplicateJob
	}

	events := make(chan domain.Event, s.cfg.EventBuffer)

	if len(s.active) < s.cfg.MaxWorkers {
		s.startLocked(job, events)
		return events, nil
	}

	if len(s.queue) >= s.cfg.MaxQueue {
		return nil, domain.ErrQueueFull
	}

	job.Status = domain.StatusQueued
	s.queue = append(s.queue, &queued{job: job, events: events})
	s.byUser[key] = job.ID
	metrics.JobQueueLength.Set(float64(len(s.queue)))
	s.logger.Info("job queued", "job_id", job.ID, "username", job.Username, "queue_length", len(s.queue))
	return events, nil
}

// Terminate cancels an active job and waits (bounded) for the worker to
// acknowledge; a merely queued job is removed without side effects.
func (s *Scheduler) Terminate(jobID string) error {
	s.mu.Lock()

	for i, q := range s.queue {
		if q.job.ID != jobID {
			continue
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		delete(s.byUser, strings.ToLower(q.job.Username))
		metrics.JobQueueLength.Set(float64(len(s.queue)))
		close(q.events)
		s.mu.Unlock()
		s.logger.Info("queued job removed", "job_id", jobID)
		return nil
	}

	sl, ok := s.active[jobID]
	s.mu.Unlock()
	if !ok {
		return domain.ErrJobNotFound
	}

	sl.cancel()

	select {
	case <-sl.done:
		return nil
	case <-time.After(s.cfg.TerminateWait):
		// Reclaim the slot so the next queued job can start; the worker
		// goroutine keeps winding down in the background.
		s.logger.Warn("worker did not exit in time, reclaiming slot", "job_id", jobID)
		s.release(jobID)
		return nil
	}
}

type JobInfo struct {
	ID       string
	Username string
	Status   domain.Status
}

type Status struct {
	Active      int
	QueueLength int
	ActiveJobs  []JobInfo
}

// Status returns a read-only snapshot of pool occupancy.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Active:      len(s.active),
		QueueLength: len(s.queue),
		ActiveJobs:  make([]JobInfo, 0, len(s.active)),
	}
	for _, sl := range s.active {
		st.ActiveJobs = append(st.ActiveJobs, JobInfo{
			ID:       sl.job.ID,
			Username: sl.job.Username,
			Status:   sl.job.Status,
		})
	}
	return st
}

// Shutdown cancels all active jobs and waits for workers to exit or ctx to
// expire, whichever comes first.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, sl := range s.active {
		sl.cancel()
	}
	for _, q := range s.queue {
		delete(s.byUser, strings.ToLower(q.job.Username))
		close(q.events)
	}
	s.queue = nil
	metrics.JobQueueLength.Set(0)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startLocked moves a job into a worker slot. Caller holds s.mu. The worker
// context carries the job ID so context-aware log records are stamped with it.
func (s *Scheduler) startLocked(job *domain.CollectionJob, events chan domain.Event) {
	ctx, cancel := context.WithCancel(requestid.WithJobID(context.Background(), job.ID))
	sl := &slot{
		job:    job,
		cancel: cancel,
		done:   make(chan struct{}),
		events: events,
	}
	job.Status = domain.StatusRunning
	s.active[job.ID] = sl
	s.byUser[strings.ToLower(job.Username)] = job.ID
	metrics.JobsInFlight.Inc()

	s.wg.Add(1)
	go s.run(ctx, sl)
}

func (s *Scheduler) run(ctx context.Context, sl *slot) {
	defer s.wg.Done()

	// Event delivery failures are logged, never fatal to the worker.
	emit := func(e domain.Event) {
		select {
		case sl.events <- e:
		default:
			s.logger.WarnContext(ctx, "event dropped, subscriber not keeping up")
		}
	}

	s.logger.InfoContext(ctx, "job started", "username", sl.job.Username)
	err := s.runner.Run(ctx, sl.job, emit)

	switch {
	case err == nil:
		sl.job.Status = domain.StatusCompleted
		metrics.JobsCompletedTotal.WithLabelValues("completed").Inc()
		s.logger.InfoContext(ctx, "job completed")
	case errors.Is(err, context.Canceled):
		sl.job.Status = domain.StatusCancelled
		emit(domain.CancelledEvent{})
		metrics.JobsCompletedTotal.WithLabelValues("cancelled").Inc()
		s.logger.InfoContext(ctx, "job cancelled")
	default:
		sl.job.Status = domain.StatusFailed
		emit(domain.ErrorEvent{Message: err.Error()})
		metrics.JobsCompletedTotal.WithLabelValues("failed").Inc()
		s.logger.WarnContext(ctx, "job failed", "error", err)
	}

	close(sl.done)
	close(sl.events)
	s.release(sl.job.ID)
}

// release frees the job's slot (if still held) and promotes queued jobs in
// FIFO order, never exceeding max concurrency.
func (s *Scheduler) release(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.active[jobID]
	if !ok {
		return // already reclaimed by a forced terminate
	}
	delete(s.active, jobID)
	delete(s.byUser, strings.ToLower(sl.job.Username))
	metrics.JobsInFlight.Dec()

	for len(s.queue) > 0 && len(s.active) < s.cfg.MaxWorkers {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.startLocked(next.job, next.events)
	}
	metrics.JobQueueLength.Set(float64(len(s.queue)))
}
