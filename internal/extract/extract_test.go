package extract

import (
	"encoding/json"
	"errors"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return raw
}

func TestExtract_Envelope(t *testing.T) {
	raw := decode(t, `{
		"specversion": "1.0",
		"type": "run.updated",
		"data": {
			"run_id": "r1",
			"session_id": "s1",
			"status": {"current": "in-progress", "updated_at": "2026-08-25T10:00:00Z"}
		}
	}`)
	res, err := Extract(raw)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.RunID != "r1" || res.SessionID != "s1" {
		t.Fatalf("unexpected ids: %q %q", res.RunID, res.SessionID)
	}
	if res.Status != "in-progress" {
		t.Fatalf("unexpected status: %q", res.Status)
	}
	if res.Timestamp.IsZero() {
		t.Fatalf("expected timestamp from status.updated_at")
	}
}

func TestExtract_EnvelopeWithoutRunID(t *testing.T) {
	raw := decode(t, `{"specversion": "1.0", "data": {"session_id": "s1"}}`)
	_, err := Extract(raw)
	if !errors.Is(err, ErrNoCorrelationID) {
		t.Fatalf("expected ErrNoCorrelationID, got %v", err)
	}
}

func TestExtract_LegacyDirectAndNested(t *testing.T) {
	for name, payload := range map[string]string{
		"direct":       `{"id": "r2", "status": "completed"}`,
		"under_run":    `{"run": {"id": "r2", "status": "completed"}}`,
		"under_data":   `{"data": {"id": "r2", "status": "completed"}}`,
	} {
		raw := decode(t, payload)
		res, err := Extract(raw)
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", name, err)
		}
		if res.RunID != "r2" || res.Status != "completed" {
			t.Fatalf("%s: unexpected result: %+v", name, res)
		}
	}
}

func TestExtract_UnknownShape(t *testing.T) {
	for _, payload := range []string{
		`{}`,
		`{"hello": "world"}`,
		`{"data": {"foo": 1}}`,
		`{"sessions": "not-an-array"}`,
	} {
		res, err := Extract(decode(t, payload))
		if !errors.Is(err, ErrNoCorrelationID) {
			t.Fatalf("payload %s: expected ErrNoCorrelationID, got %v", payload, err)
		}
		if len(res.Tools) != 0 {
			t.Fatalf("payload %s: expected no tools", payload)
		}
	}
}

func TestExtract_SessionMessages(t *testing.T) {
	raw := decode(t, `{
		"id": "r3",
		"status": "completed",
		"sessions": [{
			"phone_numbers": {"to": "+34600000000"},
			"duration": 83,
			"messages": [
				{"type": "text", "content": "hola"},
				{"type": "tool_call", "tool_name": "record_qualified_lead", "input_parameters": {"purchase_type": "annual"}},
				{"role": "tool", "function": "schedule_callback", "parameters": {"date": "2026-09-01"}},
				{"role": "tool", "name": "close_polite"}
			]
		}]
	}`)
	res, err := Extract(raw)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(res.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d: %+v", len(res.Tools), res.Tools)
	}
	if res.Tools[0].Name != "record_qualified_lead" {
		t.Fatalf("unexpected first tool: %q", res.Tools[0].Name)
	}
	if res.Tools[0].Params["purchase_type"] != "annual" {
		t.Fatalf("expected input_parameters to win the alias chain")
	}
	if res.Tools[1].Name != "schedule_callback" || res.Tools[2].Name != "close_polite" {
		t.Fatalf("unexpected tools: %+v", res.Tools)
	}
	if res.Phone != "+34600000000" {
		t.Fatalf("unexpected phone: %q", res.Phone)
	}
	if res.DurationSeconds == nil || *res.DurationSeconds != 83 {
		t.Fatalf("unexpected duration: %v", res.DurationSeconds)
	}
}

func TestExtract_TranscriptAlias(t *testing.T) {
	raw := decode(t, `{
		"id": "r4",
		"sessions": [{"transcript": [{"type": "tool_call", "tool_name": "report_voicemail"}]}]
	}`)
	res, err := Extract(raw)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(res.Tools) != 1 || res.Tools[0].Name != "report_voicemail" {
		t.Fatalf("unexpected tools: %+v", res.Tools)
	}
}

func TestExtract_EventsIntegrationAndToolCalls(t *testing.T) {
	raw := decode(t, `{
		"id": "r5",
		"events": [
			{"type": "ai_integration", "response": {"tool_name": "escalate_to_commercial", "parameters": {"reason": "big account"}}},
			{"type": "ai_integration", "response": {"function_call": {"name": "record_price_expectation", "arguments": "{\"client_price\": \"0.12\"}"}}},
			{"type": "ai_integration", "response": {"function_call": {"name": "broken", "arguments": "{not json"}}},
			{"type": "tool_call", "tool_name": "schedule_callback", "parameters": {"date": "2026-09-01"}},
			{"type": "session", "output": {"duration": 45}}
		]
	}`)
	res, err := Extract(raw)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(res.Tools) != 3 {
		t.Fatalf("expected 3 tools (broken one dropped), got %d: %+v", len(res.Tools), res.Tools)
	}
	if res.Tools[1].Name != "record_price_expectation" {
		t.Fatalf("unexpected tool: %q", res.Tools[1].Name)
	}
	if res.Tools[1].Params["client_price"] != "0.12" {
		t.Fatalf("expected second decode of function_call arguments, got %+v", res.Tools[1].Params)
	}
	if res.DurationSeconds == nil || *res.DurationSeconds != 45 {
		t.Fatalf("expected duration from session event, got %v", res.DurationSeconds)
	}
}

func TestExtract_PhoneFallbacks(t *testing.T) {
	raw := decode(t, `{"id": "r6", "sessions": [{"to_number": "+34611111111"}]}`)
	res, _ := Extract(raw)
	if res.Phone != "+34611111111" {
		t.Fatalf("unexpected phone: %q", res.Phone)
	}

	raw = decode(t, `{"id": "r7", "metadata": {"phone_number": "+34622222222"}}`)
	res, _ = Extract(raw)
	if res.Phone != "+34622222222" {
		t.Fatalf("unexpected phone: %q", res.Phone)
	}

	raw = decode(t, `{"id": "r8"}`)
	res, _ = Extract(raw)
	if res.Phone != "" {
		t.Fatalf("expected empty phone, got %q", res.Phone)
	}
}

func TestExtract_DurationDerivedFromTimestamps(t *testing.T) {
	raw := decode(t, `{
		"id": "r9",
		"created_at": "2026-08-25T10:00:00Z",
		"completed_at": "2026-08-25T10:01:30Z"
	}`)
	res, _ := Extract(raw)
	if res.DurationSeconds == nil || *res.DurationSeconds != 90 {
		t.Fatalf("expected derived duration 90, got %v", res.DurationSeconds)
	}

	// negative difference: no duration
	raw = decode(t, `{
		"id": "r10",
		"created_at": "2026-08-25T10:02:00Z",
		"completed_at": "2026-08-25T10:01:30Z"
	}`)
	res, _ = Extract(raw)
	if res.DurationSeconds != nil {
		t.Fatalf("expected no duration, got %v", *res.DurationSeconds)
	}
}

func TestExtract_ContactAliases(t *testing.T) {
	raw := decode(t, `{"id": "r11", "metadata": {"contact_name": "Ana", "company_name": "Acme"}}`)
	res, _ := Extract(raw)
	if res.ContactName != "Ana" || res.CompanyName != "Acme" {
		t.Fatalf("unexpected contact: %q %q", res.ContactName, res.CompanyName)
	}

	// Spanish aliases on the trigger channel
	raw = decode(t, `{"id": "r12", "trigger_data": {"nombre": "Luis", "empresa": "Iberia SL"}}`)
	res, _ = Extract(raw)
	if res.ContactName != "Luis" || res.CompanyName != "Iberia SL" {
		t.Fatalf("unexpected contact: %q %q", res.ContactName, res.CompanyName)
	}

	// metadata outranks trigger_data and input_data
	raw = decode(t, `{
		"id": "r13",
		"metadata": {"name": "Marta"},
		"trigger_data": {"nombre": "ignored"},
		"input_data": {"company": "InputCo"}
	}`)
	res, _ = Extract(raw)
	if res.ContactName != "Marta" {
		t.Fatalf("expected metadata to win, got %q", res.ContactName)
	}
	if res.CompanyName != "InputCo" {
		t.Fatalf("expected company to fall through to input_data, got %q", res.CompanyName)
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		payload string
		want    Shape
	}{
		{`{"specversion": "1.0", "data": {"run_id": "r"}}`, ShapeEnvelope},
		{`{"data": {"run_id": "r"}}`, ShapeEnvelope},
		{`{"id": "r"}`, ShapeLegacy},
		{`{"run": {"id": "r"}}`, ShapeLegacy},
		{`{"foo": "bar"}`, ShapeUnknown},
	}
	for _, tc := range cases {
		if got := Detect(decode(t, tc.payload)); got != tc.want {
			t.Fatalf("payload %s: expected %s, got %s", tc.payload, tc.want, got)
		}
	}
}
