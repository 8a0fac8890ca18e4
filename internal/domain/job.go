package domain

import (
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// CollectionJob identifies one collection run against a single account.
// Owned by the scheduler until handed to a worker slot.
type CollectionJob struct {
	ID          string
	Username    string
	TargetCount int

	Status      Status
	SubmittedAt time.Time
}

// CollectionRun is the persisted history row for one job execution.
type CollectionRun struct {
	ID          string
	JobID       string
	Username    string
	Status      Status
	Collected   int
	ReachedEnd  bool
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       *string
}

// Event is the tagged union of messages a worker reports back to the
// submitter. The sealed interface forces every consumer switch to name
// the variants it handles.
type Event interface {
	event()
}

type ProgressEvent struct {
	Percent int
	Phase   string
	Count   int
}

// WarningEvent signals a rate-limit pause; ResetAt is when the remote
// quota replenishes.
type WarningEvent struct {
	Message string
	ResetAt time.Time
}

type CompleteEvent struct {
	TotalCollected int
	ReachedEnd     bool
}

type ErrorEvent struct {
	Message string
}

type CancelledEvent struct{}

func (ProgressEvent) event()  {}
func (WarningEvent) event()   {}
func (CompleteEvent) event()  {}
func (ErrorEvent) event()     {}
func (CancelledEvent) event() {}
