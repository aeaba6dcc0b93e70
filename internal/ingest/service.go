// Package ingest orchestrates the reconciliation core: payloads in, one
// progressively-enriched record per call out.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"call-monitor/internal/calls"
	"call-monitor/internal/classify"
	"call-monitor/internal/extract"
	"call-monitor/internal/pending"
	"call-monitor/internal/platform"
)

var (
	// ErrNoCorrelationID mirrors the extractor's condition at the service
	// boundary: the payload cannot be attributed to any call.
	ErrNoCorrelationID = extract.ErrNoCorrelationID

	ErrPhoneRequired  = errors.New("ingest: phone required")
	ErrUnknownOutcome = errors.New("ingest: unknown outcome")
	ErrNotConfigured  = errors.New("ingest: upstream platform not configured")
)

type Service struct {
	records  calls.Store
	pending  pending.Store
	upstream platform.API // nil when no pull path is configured
	log      *slog.Logger

	pendingTTL time.Duration

	// claimed remembers which record IDs already consumed a pending
	// contact, so a later event for the same call can never re-apply
	// stale pending data.
	mu      sync.Mutex
	claimed map[string]struct{}

	now func() time.Time
}

type Options struct {
	PendingTTL time.Duration
	Upstream   platform.API
	Logger     *slog.Logger
}

func NewService(records calls.Store, pendingStore pending.Store, opts Options) *Service {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = pending.DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		records:    records,
		pending:    pendingStore,
		upstream:   opts.Upstream,
		log:        opts.Logger,
		pendingTTL: opts.PendingTTL,
		claimed:    map[string]struct{}{},
		now:        time.Now,
	}
}

// IngestWebhookPayload normalizes one push-channel payload and merges it into
// the store. The returned record is the post-merge state.
func (s *Service) IngestWebhookPayload(ctx context.Context, raw map[string]any) (calls.CallRecord, error) {
	res, err := extract.Extract(raw)
	if err != nil {
		return calls.CallRecord{}, err
	}

	rec, err := s.normalizePayload(res)
	if err != nil {
		return calls.CallRecord{}, err
	}

	merged, err := s.records.Upsert(ctx, rec)
	if err != nil {
		return calls.CallRecord{}, err
	}
	return s.maybeClaimPending(ctx, merged), nil
}

// normalizePayload classifies and composes the record. An unknown tag inside
// a platform payload is the platform's bug, not the caller's: degrade to
// tool-derived classification instead of failing the ingestion.
func (s *Service) normalizePayload(res extract.Result) (calls.CallRecord, error) {
	status := mapStatus(res.Status, res.CompletedAt)
	cls, err := classify.Classify(toolNames(res.Tools), res.ExplicitTag, status)
	if errors.Is(err, classify.ErrUnknownTag) {
		s.log.Warn("unknown classification tag in payload, falling back to tool evidence",
			"run_id", res.RunID, "tag", res.ExplicitTag)
		cls, err = classify.Classify(toolNames(res.Tools), "", status)
	}
	if err != nil {
		return calls.CallRecord{}, err
	}
	return Normalize(res, cls, s.now()), nil
}

// maybeClaimPending enriches a record from the pending-contact pool. Claimed
// only once per record, and only while the call is freshly running without
// contact identity; temporal proximity is the correlation key.
func (s *Service) maybeClaimPending(ctx context.Context, rec calls.CallRecord) calls.CallRecord {
	if s.pending == nil || rec.Status != calls.StatusRunning {
		return rec
	}
	if rec.Phone != "" && rec.ContactName != "" {
		return rec
	}

	s.mu.Lock()
	_, done := s.claimed[rec.ID]
	s.mu.Unlock()
	if done {
		return rec
	}

	contact, ok, err := s.pending.ClaimRecent(ctx, s.pendingTTL)
	if err != nil {
		s.log.Warn("pending contact claim failed", "run_id", rec.ID, "err", err)
		return rec
	}
	if !ok {
		return rec
	}
	s.mu.Lock()
	s.claimed[rec.ID] = struct{}{}
	s.mu.Unlock()

	enriched := rec
	if enriched.Phone == "" {
		enriched.Phone = contact.Phone
	}
	if enriched.ContactName == "" {
		enriched.ContactName = contact.ContactName
	}
	if enriched.CompanyName == "" {
		enriched.CompanyName = contact.CompanyName
	}
	merged, err := s.records.Upsert(ctx, enriched)
	if err != nil {
		s.log.Warn("pending contact merge failed", "run_id", rec.ID, "err", err)
		return rec
	}
	s.log.Info("pending contact correlated", "run_id", rec.ID, "phone", contact.Phone)
	return merged
}

// ResultReport carries an out-of-band outcome update keyed only by phone.
type ResultReport struct {
	Outcome string `json:"outcome"`
	Tag     string `json:"classification,omitempty"`

	NegotiationResult string `json:"negotiation_result,omitempty"`
	ClientPrice       string `json:"client_price,omitempty"`
	CallbackDate      string `json:"callback_date,omitempty"`
	CallbackTime      string `json:"callback_time,omitempty"`
	CallbackNotes     string `json:"callback_notes,omitempty"`
	DecisionMakerName string `json:"decision_maker_name,omitempty"`
	PurchaseType      string `json:"purchase_type,omitempty"`
	AnnualConsumption string `json:"annual_consumption,omitempty"`
	CloseReason       string `json:"close_reason,omitempty"`
}

// IngestResultReport applies a result report to the most recent record with
// that phone number. matched=false with a nil error means the push-channel
// event has not arrived yet; the caller decides whether to retry.
func (s *Service) IngestResultReport(ctx context.Context, phone string, report ResultReport) (bool, error) {
	if phone == "" {
		return false, ErrPhoneRequired
	}

	var (
		outcome calls.Outcome
		phase   int
	)
	switch {
	case report.Outcome != "":
		outcome = calls.Outcome(report.Outcome)
		if !outcome.Valid() {
			return false, ErrUnknownOutcome
		}
		phase = classify.Phase(outcome)
	case report.Tag != "":
		cls, err := classify.FromTag(report.Tag)
		if err != nil {
			return false, ErrUnknownOutcome
		}
		outcome, phase = cls.Outcome, cls.PhaseReached
	default:
		return false, ErrUnknownOutcome
	}

	upd := calls.ResultUpdate{
		Outcome:           outcome,
		Status:            calls.StatusCompleted,
		PhaseReached:      &phase,
		NegotiationResult: negotiationResult(report.NegotiationResult),
		ClientPrice:       report.ClientPrice,
		CallbackDate:      report.CallbackDate,
		CallbackTime:      report.CallbackTime,
		CallbackNotes:     report.CallbackNotes,
		DecisionMakerName: report.DecisionMakerName,
		PurchaseType:      report.PurchaseType,
		AnnualConsumption: report.AnnualConsumption,
		CloseReason:       report.CloseReason,
	}
	return s.records.UpdateByPhone(ctx, phone, upd)
}

// RegisterPendingContact stores contact metadata ahead of the call trigger.
func (s *Service) RegisterPendingContact(ctx context.Context, c pending.Contact) error {
	if c.Phone == "" {
		return ErrPhoneRequired
	}
	return s.pending.Register(ctx, c)
}

// ListRecords returns all known records, newest first.
func (s *Service) ListRecords(ctx context.Context) ([]calls.CallRecord, error) {
	return s.records.List(ctx)
}

// FetchAndReconcile pulls the upstream call list and runs every entry through
// the same normalize-and-merge path as the webhook channel. Detail fetches
// (by run id, falling back to session id) enrich each entry; every fetch
// failure is caught independently and degrades to listing-only data.
func (s *Service) FetchAndReconcile(ctx context.Context) ([]calls.CallRecord, error) {
	if s.upstream == nil {
		return nil, ErrNotConfigured
	}
	listed, err := s.upstream.ListCalls(ctx)
	if err != nil {
		return nil, err
	}

	for _, raw := range listed {
		res, err := extract.Extract(raw)
		if err != nil {
			s.log.Warn("skipping upstream entry without correlation id")
			continue
		}

		if detail := s.fetchDetail(ctx, res.RunID, res.SessionID); detail != nil {
			if detailRes, err := extract.Extract(detail); err == nil {
				res = detailRes
			}
		}

		rec, err := s.normalizePayload(res)
		if err != nil {
			s.log.Warn("upstream entry failed normalization", "run_id", res.RunID, "err", err)
			continue
		}
		if _, err := s.records.Upsert(ctx, rec); err != nil {
			return nil, err
		}
	}
	return s.records.List(ctx)
}

func (s *Service) fetchDetail(ctx context.Context, runID, sessionID string) map[string]any {
	if detail, err := s.upstream.GetCall(ctx, runID); err == nil {
		return detail
	} else {
		s.log.Warn("call detail fetch failed", "run_id", runID, "err", err)
	}
	if sessionID == "" {
		return nil
	}
	detail, err := s.upstream.GetSession(ctx, sessionID)
	if err != nil {
		s.log.Warn("session detail fetch failed", "session_id", sessionID, "err", err)
		return nil
	}
	return detail
}
