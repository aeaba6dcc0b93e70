package calls

import "time"

// CallRecord is the canonical, progressively-enriched representation of one
// outbound call. It is assembled from whichever channel sees the call first
// (webhook push, upstream API poll, result report) and enriched as later
// payloads arrive for the same ID.
//
// Enrichment invariant: once Phone, ContactName or CompanyName hold a
// non-empty value, a later upsert with an empty value for that field must not
// clear it. The store enforces this; callers never need to pre-merge.

type CallRecord struct {
	ID string `json:"id"`

	Phone       string `json:"phone"`
	ContactName string `json:"contact_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`

	Status       CallStatus `json:"status"`
	Outcome      Outcome    `json:"outcome"`
	PhaseReached int        `json:"phase_reached"`

	Timestamp   time.Time  `json:"timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DurationSeconds is nil until a duration is known from any source.
	DurationSeconds *int `json:"duration,omitempty"`

	// ToolsCalled preserves the order tools were observed in the payload.
	ToolsCalled []string `json:"tools_called"`

	// Outcome-specific attributes. Only the fields belonging to the record's
	// outcome are populated; the rest stay empty.
	NegotiationResult NegotiationResult `json:"negotiation_result,omitempty"`
	ClientPrice       string            `json:"client_price,omitempty"`
	CallbackDate      string            `json:"callback_date,omitempty"`
	CallbackTime      string            `json:"callback_time,omitempty"`
	CallbackNotes     string            `json:"callback_notes,omitempty"`
	DecisionMakerName string            `json:"decision_maker_name,omitempty"`
	PurchaseType      string            `json:"purchase_type,omitempty"`
	AnnualConsumption string            `json:"annual_consumption,omitempty"`
	CloseReason       string            `json:"close_reason,omitempty"`

	// SessionID is a secondary correlation key used when the run ID cannot be
	// used to fetch details from the upstream platform.
	SessionID string `json:"session_id,omitempty"`
}

type CallStatus string

const (
	StatusScheduled CallStatus = "scheduled"
	StatusRunning   CallStatus = "running"
	StatusCompleted CallStatus = "completed"
	StatusFailed    CallStatus = "failed"
	StatusCanceled  CallStatus = "canceled"
)

// Terminal reports whether the status can no longer move forward.
func (s CallStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

type Outcome string

const (
	OutcomeEscalated     Outcome = "escalated"
	OutcomeQualified     Outcome = "qualified"
	OutcomePriceRecorded Outcome = "price_recorded"
	OutcomeCallback      Outcome = "callback"
	OutcomeDecisionMaker Outcome = "decision_maker"
	OutcomeVoicemail     Outcome = "voicemail"
	OutcomeClosed        Outcome = "closed"
	OutcomeInProgress    Outcome = "in_progress"
	OutcomeUnknown       Outcome = "unknown"
)

// Valid reports whether o is a known outcome value.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeEscalated, OutcomeQualified, OutcomePriceRecorded,
		OutcomeCallback, OutcomeDecisionMaker, OutcomeVoicemail,
		OutcomeClosed, OutcomeInProgress, OutcomeUnknown:
		return true
	default:
		return false
	}
}

type NegotiationResult string

const (
	NegotiationAligned     NegotiationResult = "aligned"
	NegotiationNegotiable  NegotiationResult = "negotiable"
	NegotiationOutOfMarket NegotiationResult = "out_of_market"
)
