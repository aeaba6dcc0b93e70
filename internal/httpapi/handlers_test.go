package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"call-monitor/internal/calls"
	"call-monitor/internal/ingest"
	"call-monitor/internal/pending"
	"call-monitor/internal/reporting"

	"github.com/gin-gonic/gin"
)

func newTestRouter() (*gin.Engine, *calls.MemoryStore) {
	gin.SetMode(gin.TestMode)
	records := calls.NewMemoryStore(0)
	svc := ingest.NewService(records, pending.NewMemoryStore(0), ingest.Options{})
	h := Handlers{Ingest: svc, Reporting: reporting.NewService(records)}

	r := gin.New()
	r.POST("/webhooks/call-events", h.CallEvent)
	r.POST("/webhooks/call-results", h.CallResult)
	r.POST("/contacts/pending", h.PendingContact)
	r.GET("/v1/calls", h.ListCalls)
	r.GET("/v1/stats", h.Stats)
	return r, records
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCallEvent(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/webhooks/call-events",
		`{"specversion": "1.0", "data": {"run_id": "r1", "status": {"current": "in-progress"}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rec calls.CallRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if rec.ID != "r1" || rec.Outcome != calls.OutcomeInProgress {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCallEvent_BadInput(t *testing.T) {
	r, _ := newTestRouter()

	if w := doJSON(t, r, http.MethodPost, "/webhooks/call-events", `not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad json, got %d", w.Code)
	}
	w := doJSON(t, r, http.MethodPost, "/webhooks/call-events", `{"foo": "bar"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on missing correlation id, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no correlation id") {
		t.Fatalf("expected distinct no-correlation-id reason, got %s", w.Body.String())
	}
}

func TestCallResult(t *testing.T) {
	r, _ := newTestRouter()

	// no record yet: matched=false, still a 200
	w := doJSON(t, r, http.MethodPost, "/webhooks/call-results",
		`{"phone": "+34600000000", "outcome": "qualified"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"matched":false`) {
		t.Fatalf("expected matched=false, got %s", w.Body.String())
	}

	doJSON(t, r, http.MethodPost, "/webhooks/call-events",
		`{"id": "r1", "status": "completed", "metadata": {"phone_number": "+34600000000"}}`)

	w = doJSON(t, r, http.MethodPost, "/webhooks/call-results",
		`{"phone": "+34600000000", "outcome": "qualified"}`)
	if !strings.Contains(w.Body.String(), `"matched":true`) {
		t.Fatalf("expected matched=true, got %s", w.Body.String())
	}
}

func TestCallResult_Validation(t *testing.T) {
	r, _ := newTestRouter()

	if w := doJSON(t, r, http.MethodPost, "/webhooks/call-results", `{"outcome": "qualified"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on missing phone, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/webhooks/call-results", `{"phone": "+34600000000", "outcome": "nope"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on unknown outcome, got %d", w.Code)
	}
}

func TestPendingContact(t *testing.T) {
	r, _ := newTestRouter()

	if w := doJSON(t, r, http.MethodPost, "/contacts/pending", `{"contact_name": "Ana"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on missing phone, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/contacts/pending", `{"phone": "+34600000000", "contact_name": "Ana"}`); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
}

func TestListCallsAndStats(t *testing.T) {
	r, _ := newTestRouter()

	// empty store, no upstream configured: empty list, not an error
	w := doJSON(t, r, http.MethodGet, "/v1/calls", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	doJSON(t, r, http.MethodPost, "/webhooks/call-events",
		`{"id": "r1", "status": "completed", "sessions": [{"messages": [{"type": "tool_call", "tool_name": "record_qualified_lead"}]}]}`)

	w = doJSON(t, r, http.MethodGet, "/v1/calls", "")
	if !strings.Contains(w.Body.String(), `"r1"`) {
		t.Fatalf("expected record in listing, got %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total_calls":1`) {
		t.Fatalf("unexpected stats: %s", w.Body.String())
	}
}
