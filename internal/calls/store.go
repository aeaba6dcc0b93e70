package calls

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("calls: record not found")

// Store persists canonical call records keyed by call ID.
//
// Upsert merges rather than replaces: the returned record is the post-merge
// state. Implementations must keep the whole merge atomic so that two
// interleaved upserts for the same ID cannot observe each other's
// half-applied state.
type Store interface {
	Upsert(ctx context.Context, rec CallRecord) (CallRecord, error)
	Get(ctx context.Context, id string) (CallRecord, error)

	// List returns all records, newest first by call timestamp.
	List(ctx context.Context) ([]CallRecord, error)

	// UpdateByPhone applies upd to the most recent record whose phone matches.
	// It reports false (and no error) when no record matches, so the caller
	// can distinguish "nothing to update yet" from a failed update.
	UpdateByPhone(ctx context.Context, phone string, upd ResultUpdate) (bool, error)

	// Clear drops all records. Intended for test isolation.
	Clear(ctx context.Context) error
}

// ResultUpdate carries the fields a result report may set on an existing
// record. Zero values are skipped, nothing is cleared.
type ResultUpdate struct {
	Outcome      Outcome
	Status       CallStatus
	PhaseReached *int

	NegotiationResult NegotiationResult
	ClientPrice       string
	CallbackDate      string
	CallbackTime      string
	CallbackNotes     string
	DecisionMakerName string
	PurchaseType      string
	AnnualConsumption string
	CloseReason       string
}

// MemoryStore keeps records in process memory. This mirrors the deployment
// model of the dashboard: single process, state rebuilt from the upstream
// platform after a restart.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]CallRecord

	// cap bounds the number of retained records; 0 means unbounded.
	// When exceeded, the oldest records by timestamp are evicted.
	cap int
}

func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{recs: map[string]CallRecord{}, cap: capacity}
}

func (s *MemoryStore) Upsert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if rec.ID == "" {
		return CallRecord{}, errors.New("calls: record id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.recs[rec.ID]; ok {
		rec = Merge(prev, rec)
	}
	s.recs[rec.ID] = rec
	s.evictLocked()
	return rec, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) UpdateByPhone(ctx context.Context, phone string, upd ResultUpdate) (bool, error) {
	if phone == "" {
		return false, errors.New("calls: phone required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var best CallRecord
	found := false
	for _, rec := range s.recs {
		if rec.Phone != phone {
			continue
		}
		if !found || rec.Timestamp.After(best.Timestamp) {
			best = rec
			found = true
		}
	}
	if !found {
		return false, nil
	}
	s.recs[best.ID] = ApplyResult(best, upd)
	return true, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = map[string]CallRecord{}
	return nil
}

func (s *MemoryStore) evictLocked() {
	if s.cap <= 0 || len(s.recs) <= s.cap {
		return
	}
	all := make([]CallRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		all = append(all, rec)
	}
	sortNewestFirst(all)
	for _, rec := range all[s.cap:] {
		delete(s.recs, rec.ID)
	}
}

func sortNewestFirst(recs []CallRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		}
		return recs[i].ID < recs[j].ID
	})
}

// Merge folds an incoming record into the previously stored one.
//
// Phone, ContactName and CompanyName only ever fill in: an empty incoming
// value keeps the stored one. A terminal status never steps back to a live
// one, and a terminal outcome never reverts to in_progress. Everything else
// is latest-wins.
func Merge(prev, next CallRecord) CallRecord {
	out := next

	if out.Phone == "" {
		out.Phone = prev.Phone
	}
	if out.ContactName == "" {
		out.ContactName = prev.ContactName
	}
	if out.CompanyName == "" {
		out.CompanyName = prev.CompanyName
	}
	if out.SessionID == "" {
		out.SessionID = prev.SessionID
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = prev.Timestamp
	}
	if out.CompletedAt == nil {
		out.CompletedAt = prev.CompletedAt
	}
	if out.DurationSeconds == nil {
		out.DurationSeconds = prev.DurationSeconds
	}

	// Forward-only lifecycle: a late "running" event for an already finished
	// call must not resurrect it.
	if prev.Status.Terminal() && !next.Status.Terminal() {
		out.Status = prev.Status
		if next.Outcome == OutcomeInProgress {
			out.Outcome = prev.Outcome
			out.PhaseReached = prev.PhaseReached
		}
	}
	return out
}

// ApplyResult overlays the non-zero fields of a result update onto rec.
func ApplyResult(rec CallRecord, upd ResultUpdate) CallRecord {
	if upd.Outcome != "" {
		rec.Outcome = upd.Outcome
	}
	if upd.Status != "" {
		rec.Status = upd.Status
	}
	if upd.PhaseReached != nil {
		rec.PhaseReached = *upd.PhaseReached
	}
	if upd.NegotiationResult != "" {
		rec.NegotiationResult = upd.NegotiationResult
	}
	if upd.ClientPrice != "" {
		rec.ClientPrice = upd.ClientPrice
	}
	if upd.CallbackDate != "" {
		rec.CallbackDate = upd.CallbackDate
	}
	if upd.CallbackTime != "" {
		rec.CallbackTime = upd.CallbackTime
	}
	if upd.CallbackNotes != "" {
		rec.CallbackNotes = upd.CallbackNotes
	}
	if upd.DecisionMakerName != "" {
		rec.DecisionMakerName = upd.DecisionMakerName
	}
	if upd.PurchaseType != "" {
		rec.PurchaseType = upd.PurchaseType
	}
	if upd.AnnualConsumption != "" {
		rec.AnnualConsumption = upd.AnnualConsumption
	}
	if upd.CloseReason != "" {
		rec.CloseReason = upd.CloseReason
	}
	return rec
}
