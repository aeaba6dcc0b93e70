// Package extract normalizes the heterogeneous payload shapes delivered by
// the upstream call platform into one intermediate result.
//
// The platform has shipped several envelope generations (CloudEvents-style
// webhook envelopes, legacy direct objects, v1 events[] details, v2
// sessions[].messages details) and mixes them freely between push and pull
// channels. Extraction is best-effort: an unknown shape yields an empty
// result, never an error, except for the one condition the caller must act
// on — a payload with no correlation id at all.
package extract

import (
	"errors"
	"time"
)

// ErrNoCorrelationID reports a payload that carries neither a run id nor a
// legacy id, so the call cannot be addressed across channels.
var ErrNoCorrelationID = errors.New("extract: payload has no correlation id")

// ToolInvocation is one observed call of a named tool by the agent.
type ToolInvocation struct {
	Name     string
	Params   map[string]any
	Response map[string]any
}

// Result is the shape-independent intermediate every payload variant reduces
// to. Zero values mean "the payload did not say".
type Result struct {
	RunID     string
	SessionID string

	// Status is the raw status string as sent by the platform
	// (e.g. "in-progress"); mapping to the canonical lifecycle happens in
	// the normalizer.
	Status string

	// ExplicitTag is the platform's own summary classification, when present.
	// It outranks tool-derived classification.
	ExplicitTag string

	Phone       string
	ContactName string
	CompanyName string

	Timestamp       time.Time
	CompletedAt     *time.Time
	DurationSeconds *int

	Tools []ToolInvocation
}

// Shape identifies the structural variant of a payload.
type Shape string

const (
	ShapeEnvelope Shape = "envelope"
	ShapeLegacy   Shape = "legacy"
	ShapeUnknown  Shape = "unknown"
)

// Detect classifies the payload by its structural markers alone.
// An envelope is recognized by its CloudEvents attributes or by a data
// object carrying run_id; anything exposing an id (directly or nested one
// level under run/data) is a legacy direct object.
func Detect(raw map[string]any) Shape {
	if raw == nil {
		return ShapeUnknown
	}
	if _, ok := raw["specversion"]; ok {
		return ShapeEnvelope
	}
	if data := asMap(raw["data"]); data != nil {
		if str(data["run_id"]) != "" {
			return ShapeEnvelope
		}
	}
	if legacyBase(raw) != nil {
		return ShapeLegacy
	}
	return ShapeUnknown
}

// Extract reduces any known payload shape to a Result. The only error is
// ErrNoCorrelationID; it is returned together with whatever partial data was
// recoverable so the caller can still log or inspect it.
func Extract(raw map[string]any) (Result, error) {
	switch Detect(raw) {
	case ShapeEnvelope:
		return extractEnvelope(raw)
	case ShapeLegacy:
		return extractLegacy(legacyBase(raw))
	default:
		return Result{}, ErrNoCorrelationID
	}
}

func extractEnvelope(raw map[string]any) (Result, error) {
	data := asMap(raw["data"])
	if data == nil {
		return Result{}, ErrNoCorrelationID
	}
	res := extractCommon(data)
	res.RunID = str(data["run_id"])
	if res.SessionID == "" {
		res.SessionID = str(data["session_id"])
	}
	if status := asMap(data["status"]); status != nil {
		res.Status = str(status["current"])
		if ts := parseTime(status["updated_at"]); !ts.IsZero() && res.Timestamp.IsZero() {
			res.Timestamp = ts
		}
	}
	if res.RunID == "" {
		return res, ErrNoCorrelationID
	}
	return res, nil
}

func extractLegacy(base map[string]any) (Result, error) {
	res := extractCommon(base)
	res.RunID = str(base["id"])
	if res.Status == "" {
		res.Status = str(base["status"])
	}
	if res.RunID == "" {
		return res, ErrNoCorrelationID
	}
	return res, nil
}

// extractCommon pulls everything both variants share: identifiers, raw
// status, timestamps, tools, phone, duration and contact metadata.
func extractCommon(base map[string]any) Result {
	res := Result{
		SessionID:   str(base["session_id"]),
		Status:      str(base["status"]),
		ExplicitTag: explicitTag(base),
	}

	res.Timestamp = firstTime(base, "started_at", "created_at", "timestamp")
	if done := firstTime(base, "completed_at", "ended_at"); !done.IsZero() {
		res.CompletedAt = &done
	}

	res.Tools = append(res.Tools, sessionTools(base)...)
	res.Tools = append(res.Tools, eventTools(base)...)

	res.Phone = phoneNumber(base)
	res.DurationSeconds = duration(base, res.Timestamp, res.CompletedAt)
	res.ContactName, res.CompanyName = contact(base)
	return res
}

// legacyBase finds the object carrying the legacy id field: the payload
// itself, or nested one level under run or data.
func legacyBase(raw map[string]any) map[string]any {
	if str(raw["id"]) != "" {
		return raw
	}
	for _, key := range []string{"run", "data"} {
		if nested := asMap(raw[key]); nested != nil && str(nested["id"]) != "" {
			return nested
		}
	}
	return nil
}

// explicitTag looks for the platform's summary classification on the object
// itself and then in its metadata.
func explicitTag(base map[string]any) string {
	if tag := firstString(base, "classification", "outcome_tag"); tag != "" {
		return tag
	}
	if meta := asMap(base["metadata"]); meta != nil {
		return firstString(meta, "classification", "outcome_tag")
	}
	return ""
}
