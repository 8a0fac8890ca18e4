package collector

import (
	"testing"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
)

func tweet(id string, t time.Time) *domain.Tweet {
	return &domain.Tweet{ID: id, Text: "text-" + id, CreatedAt: t}
}

func TestAssembler_NewestWins(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a := NewAssembler(10)

	a.Add(tweet("a", base.Add(1*time.Second)))
	a.Add(tweet("a", base.Add(2*time.Second)))
	a.Add(tweet("a", base.Add(0*time.Second)))

	got := a.Drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("expected newest version retained, got created_at=%v", got[0].CreatedAt)
	}
}

func TestAssembler_TieKeepsExisting(t *testing.T) {
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a := NewAssembler(10)

	first := tweet("a", ts)
	first.Text = "original"
	second := tweet("a", ts)
	second.Text = "replacement"

	a.Add(first)
	a.Add(second)

	got := a.Drain()
	if got[0].Text != "original" {
		t.Errorf("tie should keep the existing entry, got %q", got[0].Text)
	}
}

func TestAssembler_DuplicateIsNotNew(t *testing.T) {
	ts := time.Now()
	a := NewAssembler(10)

	if !a.Add(tweet("a", ts)) {
		t.Fatal("first add should report a new record")
	}
	if a.Add(tweet("a", ts.Add(time.Second))) {
		t.Error("replacing an existing id should not report a new record")
	}
	if a.Size() != 1 {
		t.Errorf("expected size 1, got %d", a.Size())
	}
}

func TestAssembler_BoundedAtTarget(t *testing.T) {
	ts := time.Now()
	a := NewAssembler(2)

	a.Add(tweet("a", ts))
	a.Add(tweet("b", ts))
	if a.Add(tweet("c", ts)) {
		t.Error("add beyond target should be rejected")
	}

	if !a.Full() {
		t.Error("assembler should be full")
	}
	if a.Size() != 2 {
		t.Errorf("expected size 2, got %d", a.Size())
	}
}

func TestAssembler_DrainPreservesInsertionOrder(t *testing.T) {
	ts := time.Now()
	a := NewAssembler(10)

	for _, id := range []string{"c", "a", "b"} {
		a.Add(tweet(id, ts))
	}

	got := a.Drain()
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: want %s, got %s", i, id, got[i].ID)
		}
	}
}
