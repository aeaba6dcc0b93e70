package reporting

import (
	"context"
	"testing"
	"time"

	"call-monitor/internal/calls"
)

func TestSummaryAggregates(t *testing.T) {
	ctx := context.Background()
	store := calls.NewMemoryStore(0)
	now := time.Unix(1700000000, 0).UTC()
	d1, d2 := 60, 120

	seed := []calls.CallRecord{
		{ID: "a", Status: calls.StatusCompleted, Outcome: calls.OutcomeQualified, PhaseReached: 4, Timestamp: now, DurationSeconds: &d1},
		{ID: "b", Status: calls.StatusCompleted, Outcome: calls.OutcomeClosed, PhaseReached: 2, Timestamp: now, DurationSeconds: &d2},
		{ID: "c", Status: calls.StatusRunning, Outcome: calls.OutcomeInProgress, PhaseReached: 0, Timestamp: now},
		{ID: "d", Status: calls.StatusFailed, Outcome: calls.OutcomeUnknown, PhaseReached: 3, Timestamp: now},
	}
	for _, rec := range seed {
		if _, err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	out, err := NewService(store).Summary(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.CompletedCalls != 2 || out.RunningCalls != 1 || out.FailedCalls != 1 {
		t.Fatalf("unexpected status counts: %+v", out)
	}
	if out.ByOutcome[calls.OutcomeQualified] != 1 || out.ByOutcome[calls.OutcomeClosed] != 1 {
		t.Fatalf("unexpected outcome counts: %+v", out.ByOutcome)
	}
	if out.ByPhase[4] != 1 || out.ByPhase[3] != 1 {
		t.Fatalf("unexpected phase counts: %+v", out.ByPhase)
	}
	if out.TotalDurationSeconds != 180 {
		t.Fatalf("expected total duration 180, got %d", out.TotalDurationSeconds)
	}
	// average over records that have a duration, not over all records
	if out.AverageDurationSeconds != 90 {
		t.Fatalf("expected average 90, got %d", out.AverageDurationSeconds)
	}
}

func TestSummaryEmptyStore(t *testing.T) {
	out, err := NewService(calls.NewMemoryStore(0)).Summary(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 0 || out.AverageDurationSeconds != 0 {
		t.Fatalf("unexpected summary: %+v", out)
	}
}
