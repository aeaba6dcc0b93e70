package calls

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestMemoryStore_MonotonicEnrichment(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	now := time.Unix(1700000000, 0).UTC()

	_, err := s.Upsert(ctx, CallRecord{
		ID: "r1", Phone: "+34600000000", ContactName: "Ana", CompanyName: "Acme",
		Status: StatusRunning, Outcome: OutcomeInProgress, Timestamp: now,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// later event without contact fields must not regress them
	merged, err := s.Upsert(ctx, CallRecord{
		ID: "r1", Status: StatusCompleted, Outcome: OutcomeQualified, PhaseReached: 4, Timestamp: now,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if merged.Phone != "+34600000000" || merged.ContactName != "Ana" || merged.CompanyName != "Acme" {
		t.Fatalf("enrichment regressed: %+v", merged)
	}
	if merged.Outcome != OutcomeQualified || merged.Status != StatusCompleted {
		t.Fatalf("latest-wins fields not applied: %+v", merged)
	}
}

func TestMemoryStore_Idempotence(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	now := time.Unix(1700000000, 0).UTC()
	rec := CallRecord{
		ID: "r1", Phone: "+34600000000", Status: StatusCompleted,
		Outcome: OutcomeClosed, PhaseReached: 2, Timestamp: now,
		ToolsCalled: []string{"close_polite"},
	}

	first, err := s.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := s.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-ingesting the same record changed it:\n%+v\n%+v", first, second)
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	base := time.Unix(1700000000, 0).UTC()
	for i, id := range []string{"a", "b", "c"} {
		_, _ = s.Upsert(ctx, CallRecord{ID: id, Status: StatusCompleted, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	out, err := s.List(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 3 || out[0].ID != "c" || out[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestMemoryStore_UpdateByPhone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	base := time.Unix(1700000000, 0).UTC()

	matched, err := s.UpdateByPhone(ctx, "+34600000000", ResultUpdate{Outcome: OutcomeQualified})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if matched {
		t.Fatalf("expected no match on empty store")
	}

	_, _ = s.Upsert(ctx, CallRecord{ID: "old", Phone: "+34600000000", Status: StatusCompleted, Outcome: OutcomeUnknown, Timestamp: base})
	_, _ = s.Upsert(ctx, CallRecord{ID: "new", Phone: "+34600000000", Status: StatusCompleted, Outcome: OutcomeUnknown, Timestamp: base.Add(time.Hour)})
	_, _ = s.Upsert(ctx, CallRecord{ID: "other", Phone: "+34699999999", Status: StatusCompleted, Outcome: OutcomeUnknown, Timestamp: base.Add(2 * time.Hour)})

	phase := 6
	matched, err = s.UpdateByPhone(ctx, "+34600000000", ResultUpdate{Outcome: OutcomeEscalated, Status: StatusCompleted, PhaseReached: &phase})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !matched {
		t.Fatalf("expected a match")
	}

	newest, _ := s.Get(ctx, "new")
	if newest.Outcome != OutcomeEscalated || newest.PhaseReached != 6 {
		t.Fatalf("most recent match not updated: %+v", newest)
	}
	oldest, _ := s.Get(ctx, "old")
	if oldest.Outcome != OutcomeUnknown {
		t.Fatalf("older match should be untouched: %+v", oldest)
	}
}

func TestMemoryStore_TerminalStatusDoesNotRegress(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	now := time.Unix(1700000000, 0).UTC()

	_, _ = s.Upsert(ctx, CallRecord{ID: "r1", Status: StatusCompleted, Outcome: OutcomeEscalated, PhaseReached: 6, Timestamp: now})

	// late running event must not resurrect the call
	merged, err := s.Upsert(ctx, CallRecord{ID: "r1", Status: StatusRunning, Outcome: OutcomeInProgress, Timestamp: now})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if merged.Status != StatusCompleted || merged.Outcome != OutcomeEscalated || merged.PhaseReached != 6 {
		t.Fatalf("terminal state regressed: %+v", merged)
	}
}

func TestMemoryStore_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	base := time.Unix(1700000000, 0).UTC()
	for i, id := range []string{"a", "b", "c"} {
		_, _ = s.Upsert(ctx, CallRecord{ID: id, Status: StatusCompleted, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	out, _ := s.List(ctx)
	if len(out) != 2 {
		t.Fatalf("expected 2 records after eviction, got %d", len(out))
	}
	if _, err := s.Get(ctx, "a"); err == nil {
		t.Fatalf("expected oldest record evicted")
	}
}

func TestMemoryStore_DurationAndCompletionSurvive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	now := time.Unix(1700000000, 0).UTC()
	done := now.Add(time.Minute)
	d := 60

	_, _ = s.Upsert(ctx, CallRecord{ID: "r1", Status: StatusCompleted, Timestamp: now, CompletedAt: &done, DurationSeconds: &d})
	merged, _ := s.Upsert(ctx, CallRecord{ID: "r1", Status: StatusCompleted, Timestamp: now})
	if merged.DurationSeconds == nil || *merged.DurationSeconds != 60 {
		t.Fatalf("duration lost on merge: %+v", merged)
	}
	if merged.CompletedAt == nil || !merged.CompletedAt.Equal(done) {
		t.Fatalf("completed_at lost on merge: %+v", merged)
	}
}

func TestApplyResult_SkipsZeroFields(t *testing.T) {
	rec := CallRecord{ID: "r1", Outcome: OutcomeCallback, CallbackDate: "2026-09-01"}
	out := ApplyResult(rec, ResultUpdate{Outcome: OutcomeEscalated})
	if out.Outcome != OutcomeEscalated {
		t.Fatalf("outcome not applied")
	}
	if out.CallbackDate != "2026-09-01" {
		t.Fatalf("zero-value update cleared a field")
	}
}
