// Package classify maps call evidence (invoked tool names, or the platform's
// own summary tag) to a single outcome and a phase-reached ordinal.
package classify

import (
	"errors"
	"fmt"

	"call-monitor/internal/calls"
)

// ErrUnknownTag rejects a classification tag outside the known vocabulary.
// This is an input-validation failure: the caller must correct the tag, it is
// not a "no data yet" condition.
var ErrUnknownTag = errors.New("classify: unknown classification tag")

type Classification struct {
	Outcome      calls.Outcome
	PhaseReached int
}

// toolTable is the fixed-priority mapping from tool names to outcomes.
// A call may invoke several of these across its lifetime; the first match in
// this order decides, so the order is load-bearing.
var toolTable = []struct {
	Tool    string
	Outcome calls.Outcome
}{
	{"escalate_to_commercial", calls.OutcomeEscalated},
	{"record_price_expectation", calls.OutcomePriceRecorded},
	{"record_qualified_lead", calls.OutcomeQualified},
	{"schedule_callback", calls.OutcomeCallback},
	{"request_decision_maker_contact", calls.OutcomeDecisionMaker},
	{"report_voicemail", calls.OutcomeVoicemail},
	{"close_polite", calls.OutcomeClosed},
}

// phaseTable is the canonical phase-reached ordinal per outcome. Two tables
// circulated in older payload handlers (escalated was 5 in one, 6 in the
// other); this one is fixed as canonical here and used everywhere.
var phaseTable = map[calls.Outcome]int{
	calls.OutcomeEscalated:     6,
	calls.OutcomePriceRecorded: 5,
	calls.OutcomeQualified:     4,
	calls.OutcomeCallback:      3,
	calls.OutcomeDecisionMaker: 2,
	calls.OutcomeVoicemail:     1,
	calls.OutcomeClosed:        2,
	calls.OutcomeUnknown:       3,
	calls.OutcomeInProgress:    0,
}

// tagTable is the secondary vocabulary used by the platform's AI
// summarization stage. Several distinct closed_* tags collapse to closed.
var tagTable = map[string]calls.Outcome{
	"escalated":                calls.OutcomeEscalated,
	"escalation_requested":     calls.OutcomeEscalated,
	"price_recorded":           calls.OutcomePriceRecorded,
	"price_expectation":        calls.OutcomePriceRecorded,
	"qualified":                calls.OutcomeQualified,
	"qualified_lead":           calls.OutcomeQualified,
	"callback":                 calls.OutcomeCallback,
	"callback_scheduled":       calls.OutcomeCallback,
	"decision_maker":           calls.OutcomeDecisionMaker,
	"decision_maker_requested": calls.OutcomeDecisionMaker,
	"voicemail":                calls.OutcomeVoicemail,
	"closed":                   calls.OutcomeClosed,
	"closed_polite":            calls.OutcomeClosed,
	"closed_not_interested":    calls.OutcomeClosed,
	"closed_no_need":           calls.OutcomeClosed,
	"closed_wrong_number":      calls.OutcomeClosed,
	"in_progress":              calls.OutcomeInProgress,
	"unknown":                  calls.OutcomeUnknown,
}

// Classify decides the outcome for a call.
//
// A running call cannot have a terminal outcome yet, so status wins first:
// the result is in_progress, with the phase the tool evidence supports so
// far. Otherwise an explicit tag, if present, wins over tool evidence; an
// unrecognized tag is rejected. With neither, the tool table decides, and no
// match lands on unknown (deliberately mid-range phase 3 rather than 0, so
// unclassified calls do not sort as untouched).
func Classify(toolNames []string, explicitTag string, status calls.CallStatus) (Classification, error) {
	if status == calls.StatusRunning {
		return Classification{
			Outcome:      calls.OutcomeInProgress,
			PhaseReached: toolPhase(toolNames),
		}, nil
	}

	if explicitTag != "" {
		outcome, ok := tagTable[explicitTag]
		if !ok {
			return Classification{}, fmt.Errorf("%w: %q", ErrUnknownTag, explicitTag)
		}
		return Classification{Outcome: outcome, PhaseReached: phaseTable[outcome]}, nil
	}

	outcome := toolOutcome(toolNames)
	return Classification{Outcome: outcome, PhaseReached: phaseTable[outcome]}, nil
}

// FromTag resolves a bare tag (result-report channel) without tool evidence.
func FromTag(tag string) (Classification, error) {
	outcome, ok := tagTable[tag]
	if !ok {
		return Classification{}, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	return Classification{Outcome: outcome, PhaseReached: phaseTable[outcome]}, nil
}

// Phase returns the canonical phase ordinal for an outcome.
func Phase(outcome calls.Outcome) int { return phaseTable[outcome] }

func toolOutcome(toolNames []string) calls.Outcome {
	for _, entry := range toolTable {
		for _, name := range toolNames {
			if name == entry.Tool {
				return entry.Outcome
			}
		}
	}
	return calls.OutcomeUnknown
}

// toolPhase reports the furthest phase the tool evidence supports; 0 when
// there is none yet.
func toolPhase(toolNames []string) int {
	for _, entry := range toolTable {
		for _, name := range toolNames {
			if name == entry.Tool {
				return phaseTable[entry.Outcome]
			}
		}
	}
	return 0
}
