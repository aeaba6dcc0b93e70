package ingest

import (
	"fmt"
	"strings"
	"time"

	"call-monitor/internal/calls"
	"call-monitor/internal/classify"
	"call-monitor/internal/extract"
)

// Normalize composes an extraction result and its classification into the
// canonical record. Pure; storage merge happens later in the store.
func Normalize(res extract.Result, cls classify.Classification, now time.Time) calls.CallRecord {
	rec := calls.CallRecord{
		ID:           res.RunID,
		SessionID:    res.SessionID,
		Phone:        res.Phone,
		ContactName:  res.ContactName,
		CompanyName:  res.CompanyName,
		Status:       mapStatus(res.Status, res.CompletedAt),
		Outcome:      cls.Outcome,
		PhaseReached: cls.PhaseReached,
		Timestamp:    res.Timestamp,
		CompletedAt:  res.CompletedAt,
		ToolsCalled:  toolNames(res.Tools),
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	if res.DurationSeconds != nil {
		d := *res.DurationSeconds
		rec.DurationSeconds = &d
	}
	applyOutcomeFields(&rec, res.Tools)
	return rec
}

// mapStatus folds the platform's raw status strings onto the canonical
// lifecycle. An absent status means the payload predates the status field:
// treat the call as finished when a completion time exists, live otherwise.
func mapStatus(raw string, completedAt *time.Time) calls.CallStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running", "in-progress", "in_progress", "active", "live":
		return calls.StatusRunning
	case "completed", "complete", "done", "ended", "finished", "success":
		return calls.StatusCompleted
	case "failed", "error":
		return calls.StatusFailed
	case "canceled", "cancelled":
		return calls.StatusCanceled
	case "scheduled", "queued", "pending":
		return calls.StatusScheduled
	case "":
		if completedAt != nil {
			return calls.StatusCompleted
		}
		return calls.StatusRunning
	default:
		// Unrecognized statuses degrade to completed: by the time the
		// platform invents a new terminal label the call is over.
		return calls.StatusCompleted
	}
}

func toolNames(tools []extract.ToolInvocation) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

// applyOutcomeFields copies outcome-specific attributes from the single tool
// invocation that defines each outcome. Absent invocation, absent fields;
// nothing is defaulted.
func applyOutcomeFields(rec *calls.CallRecord, tools []extract.ToolInvocation) {
	if inv, ok := findTool(tools, "record_price_expectation"); ok {
		rec.NegotiationResult = negotiationResult(param(inv, "negotiation_result", "result"))
		rec.ClientPrice = param(inv, "client_price", "price")
	}
	if inv, ok := findTool(tools, "schedule_callback"); ok {
		rec.CallbackDate = param(inv, "callback_date", "date")
		rec.CallbackTime = param(inv, "callback_time", "time")
		rec.CallbackNotes = param(inv, "notes", "callback_notes")
	}
	if inv, ok := findTool(tools, "request_decision_maker_contact"); ok {
		rec.DecisionMakerName = param(inv, "decision_maker_name", "name")
	}
	if inv, ok := findTool(tools, "record_qualified_lead"); ok {
		rec.PurchaseType = param(inv, "purchase_type")
		rec.AnnualConsumption = param(inv, "annual_consumption")
	}
	if inv, ok := findTool(tools, "close_polite"); ok {
		rec.CloseReason = param(inv, "reason", "close_reason")
	}
}

func findTool(tools []extract.ToolInvocation, name string) (extract.ToolInvocation, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return extract.ToolInvocation{}, false
}

// param reads the first non-empty parameter among the given aliases,
// stringifying numbers (prices and consumptions arrive both ways).
func param(inv extract.ToolInvocation, keys ...string) string {
	for _, k := range keys {
		switch v := inv.Params[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v))
			}
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

func negotiationResult(raw string) calls.NegotiationResult {
	switch calls.NegotiationResult(raw) {
	case calls.NegotiationAligned, calls.NegotiationNegotiable, calls.NegotiationOutOfMarket:
		return calls.NegotiationResult(raw)
	default:
		return ""
	}
}
