// Package pending holds pre-registered contact metadata submitted just
// before a call is triggered, and correlates it to the arriving call record
// by recency.
//
// Correlation is deliberately not phone-keyed: at the moment the webhook
// channel first sees a call, the contact's number is often not yet knowable
// from the payload. Temporal proximity between "register contact" and "call
// starts" is the correlation key, bounded by a TTL.
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL bounds how old a pending contact may be and still be
	// claimed by an arriving call.
	DefaultTTL = 120 * time.Second

	// DefaultCapacity bounds retention; beyond it the oldest entries are
	// dropped. Ring behavior, not a precise LRU.
	DefaultCapacity = 20
)

// Contact is a short-lived side-channel record awaiting its call.
type Contact struct {
	ID          string    `json:"id"`
	Phone       string    `json:"phone"`
	ContactName string    `json:"contact_name,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	MinPrice    string    `json:"min_price,omitempty"`
	MaxPrice    string    `json:"max_price,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

// Store registers contacts and hands each out at most once.
type Store interface {
	Register(ctx context.Context, c Contact) error

	// ClaimRecent removes and returns the most recently stored contact not
	// older than ttl. The second return is false when nothing qualifies;
	// entries beyond the TTL stay put until capacity evicts them.
	ClaimRecent(ctx context.Context, ttl time.Duration) (Contact, bool, error)

	Clear(ctx context.Context) error
}

// MemoryStore is the default in-process implementation.
type MemoryStore struct {
	mu       sync.Mutex
	contacts []Contact
	cap      int

	// now is swappable for tests.
	now func() time.Time
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{cap: capacity, now: time.Now}
}

func (s *MemoryStore) Register(ctx context.Context, c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.StoredAt.IsZero() {
		c.StoredAt = s.now()
	}
	s.contacts = append(s.contacts, c)
	if overflow := len(s.contacts) - s.cap; overflow > 0 {
		s.contacts = append([]Contact(nil), s.contacts[overflow:]...)
	}
	return nil
}

func (s *MemoryStore) ClaimRecent(ctx context.Context, ttl time.Duration) (Contact, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	best := -1
	for i, c := range s.contacts {
		if c.StoredAt.Before(cutoff) {
			continue
		}
		if best < 0 || c.StoredAt.After(s.contacts[best].StoredAt) {
			best = i
		}
	}
	if best < 0 {
		return Contact{}, false, nil
	}
	claimed := s.contacts[best]
	s.contacts = append(s.contacts[:best], s.contacts[best+1:]...)
	return claimed, true, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = nil
	return nil
}
