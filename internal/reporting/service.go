// Package reporting aggregates call records into the statistics the
// dashboard UI renders.
package reporting

import (
	"context"
	"errors"

	"call-monitor/internal/calls"
)

// Summary is one aggregated snapshot over all known calls.
type Summary struct {
	TotalCalls     int `json:"total_calls"`
	RunningCalls   int `json:"running_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	CanceledCalls  int `json:"canceled_calls"`
	ScheduledCalls int `json:"scheduled_calls"`

	ByOutcome map[calls.Outcome]int `json:"by_outcome"`
	ByPhase   map[int]int           `json:"by_phase"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

type Service struct {
	records calls.Store
}

func NewService(records calls.Store) *Service { return &Service{records: records} }

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if s.records == nil {
		return Summary{}, errors.New("reporting: record store not configured")
	}
	recs, err := s.records.List(ctx)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{
		ByOutcome: map[calls.Outcome]int{},
		ByPhase:   map[int]int{},
	}
	withDuration := 0
	for _, rec := range recs {
		out.TotalCalls++
		out.ByOutcome[rec.Outcome]++
		out.ByPhase[rec.PhaseReached]++

		switch rec.Status {
		case calls.StatusRunning:
			out.RunningCalls++
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusCanceled:
			out.CanceledCalls++
		case calls.StatusScheduled:
			out.ScheduledCalls++
		}

		if rec.DurationSeconds != nil {
			out.TotalDurationSeconds += *rec.DurationSeconds
			withDuration++
		}
	}
	if withDuration > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / withDuration
	}
	return out, nil
}
