package collector

import (
	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
)

// Assembler merges pages into a unique, newest-wins record set bounded by
// the job's target count. One assembler lives for exactly one job; it is
// never shared across jobs and needs no locking.
type Assembler struct {
	target  int
	byID    map[string]*domain.Tweet
	order   []string // insertion order for deterministic Drain
}

func NewAssembler(target int) *Assembler {
	return &Assembler{
		target: target,
		byID:   make(map[string]*domain.Tweet, target),
	}
}

// Add inserts or replaces by ID, keeping the version with the newest
// creation timestamp (ties keep the existing entry). Returns true only
// when a previously unseen ID was accepted; once the target count of
// unique records is reached, new IDs are rejected.
func (a *Assembler) Add(t *domain.Tweet) bool {
	existing, seen := a.byID[t.ID]
	if seen {
		if t.CreatedAt.After(existing.CreatedAt) {
			a.byID[t.ID] = t
		}
		return false
	}

	if a.Full() {
		return false
	}

	a.byID[t.ID] = t
	a.order = append(a.order, t.ID)
	return true
}

// Full reports whether the unique-record target has been reached.
func (a *Assembler) Full() bool {
	return len(a.order) >= a.target
}

func (a *Assembler) Size() int {
	return len(a.order)
}

// Drain returns the current record set in insertion order. It is a read
// view; the assembler keeps its contents until the job ends.
func (a *Assembler) Drain() []*domain.Tweet {
	out := make([]*domain.Tweet, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.byID[id])
	}
	return out
}
