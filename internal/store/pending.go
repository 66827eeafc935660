/**
 * @description
 * This package implements the in-process pending-authorization store: a
 * bounded-lifetime map from interaction reference to the authorization record
 * captured when the consent flow redirects back to the service. The store is
 * the only shared mutable state in the payment-service and is owned
 * exclusively by the orchestrator for the lifetime of the process.
 *
 * Key features:
 * - Overwrite-on-put semantics: consent callback re-delivery for the same
 *   interaction reference replaces the stored record (last write wins).
 * - Single-use claim: find-candidate-then-remove runs as one critical section,
 *   so a second completion attempt with the same interaction reference fails.
 * - Expiry is checked against the stored creation timestamp on every read,
 *   keeping behavior deterministic under test; a background sweep reclaims
 *   memory for records that are never claimed.
 *
 * @dependencies
 * - sync, time: Standard Go libraries.
 * - internal/domain: The PendingAuthorization record type.
 */

package store

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/direla/payment-service/internal/domain"
)

// ErrAuthorizationNotFound is returned when no live pending authorization
// matches a claim. Callers must re-initiate the consent flow.
var ErrAuthorizationNotFound = errors.New("no completed authorization found")

// DefaultTTL is the reference lifetime of an unclaimed authorization.
const DefaultTTL = 5 * time.Minute

// PendingStore holds pending authorizations keyed by interaction reference.
type PendingStore struct {
	mu      sync.Mutex
	entries map[string]domain.PendingAuthorization
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

// NewPendingStore creates a store with the given time-to-live and starts the
// background sweep. A non-positive ttl falls back to DefaultTTL.
func NewPendingStore(ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &PendingStore{
		entries: make(map[string]domain.PendingAuthorization),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Put stores (or overwrites) the record under its interaction reference and
// stamps it with the current time.
func (s *PendingStore) Put(record domain.PendingAuthorization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.CreatedAt = s.now()
	s.entries[record.InteractRef] = record
}

// FindByQuoteOrFresh returns a live record matching the quote id, or — when no
// exact match exists — the oldest record still inside the TTL window. The
// tolerant fallback exists because the consent callback does not always carry
// a reliable quote-id echo. Returns false when nothing qualifies.
func (s *PendingStore) FindByQuoteOrFresh(quoteID string) (domain.PendingAuthorization, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.findLocked(quoteID)
	return record, ok
}

// Claim atomically finds the record matching the quote id (or the TTL
// fallback) and removes it from the store, upholding the single-use
// invariant across concurrent completions.
func (s *PendingStore) Claim(quoteID string) (domain.PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.findLocked(quoteID)
	if !ok {
		return domain.PendingAuthorization{}, ErrAuthorizationNotFound
	}
	delete(s.entries, record.InteractRef)
	return record, nil
}

// Remove deletes the record for the given interaction reference, if present.
func (s *PendingStore) Remove(interactRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, interactRef)
}

// Len reports the number of records physically present, expired or not.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the background sweep. Safe to call more than once.
func (s *PendingStore) Close() {
	s.stopped.Do(func() { close(s.stop) })
}

// findLocked applies the matching policy. Exact quote-id matches always win;
// among multiple candidates the oldest record is chosen so that the result
// does not depend on map iteration order. Expired records never match.
func (s *PendingStore) findLocked(quoteID string) (domain.PendingAuthorization, bool) {
	cutoff := s.now().Add(-s.ttl)

	var exact, fresh *domain.PendingAuthorization
	for ref := range s.entries {
		record := s.entries[ref]
		if !record.CreatedAt.After(cutoff) {
			continue
		}
		if quoteID != "" && record.QuoteID == quoteID {
			if exact == nil || record.CreatedAt.Before(exact.CreatedAt) {
				r := record
				exact = &r
			}
			continue
		}
		if fresh == nil || record.CreatedAt.Before(fresh.CreatedAt) {
			r := record
			fresh = &r
		}
	}
	if exact != nil {
		return *exact, true
	}
	if fresh != nil {
		return *fresh, true
	}
	return domain.PendingAuthorization{}, false
}

// sweepLoop periodically drops records past their TTL. Expiry correctness does
// not depend on the sweep; reads check the stored timestamp themselves.
func (s *PendingStore) sweepLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *PendingStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for ref, record := range s.entries {
		if !record.CreatedAt.After(cutoff) {
			delete(s.entries, ref)
			log.Printf("level=info component=pending_store msg=\"expired authorization swept\" interact_ref=%s quote_id=%s", ref, record.QuoteID)
		}
	}
}
