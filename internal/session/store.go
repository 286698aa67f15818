// Package session holds in-progress wizard selections in memory, keyed by
// the Telegram user ID.
//
// The store solves two concurrency problems the transport hands us:
//
//   - Different users' updates are dispatched on independent goroutines, so
//     access to the session map must be safe and one user's work must never
//     block another's. Map access is guarded by a short-lived mutex; nothing
//     slow ever runs under it.
//   - Within one user, steps must not interleave (Telegram does not promise
//     a single in-flight update per chat). Serialize runs the step body
//     under a per-user lock, so a double-tapped button queues behind the
//     first tap instead of racing it. The deliberate pause inside a relay
//     pulse therefore holds only that user's lock.
//
// Entries idle longer than a TTL are evicted opportunistically during
// lookups, bounding memory without a background sweeper.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/washpoint/launchbot/internal/domain"
)

// entry pairs one user's session with the lock serializing their steps.
type entry struct {
	mu       sync.Mutex
	session  *domain.SelectionSession // nil when no wizard is in progress
	lastSeen time.Time
}

// Store is an in-memory session store safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry

	ttl      time.Duration
	cleanupN uint64

	now func() time.Time // test seam
}

// NewStore constructs a Store evicting entries idle longer than ttl.
// A non-positive ttl falls back to 30 minutes.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		entries: make(map[int64]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// getEntry returns (and touches) the entry for userID, creating it if
// absent. Periodically sweeps idle entries while already holding the map
// lock.
func (s *Store) getEntry(userID int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupN++
	if s.cleanupN%64 == 0 {
		cutoff := s.now().Add(-s.ttl)
		for id, e := range s.entries {
			if e.lastSeen.Before(cutoff) {
				delete(s.entries, id)
			}
		}
	}

	e, ok := s.entries[userID]
	if !ok {
		e = &entry{}
		s.entries[userID] = e
	}
	e.lastSeen = s.now()
	return e
}

// Serialize runs fn under userID's lock. Steps for the same user execute
// one at a time in arrival order; steps for different users run
// concurrently.
func (s *Store) Serialize(userID int64, fn func()) {
	e := s.getEntry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Begin discards any prior session for userID and installs a fresh one at
// the city-selection stage, returning it. Call from inside Serialize.
func (s *Store) Begin(userID int64) *domain.SelectionSession {
	e := s.getEntry(userID)
	now := s.now()
	e.session = &domain.SelectionSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Stage:     domain.StageAwaitingCity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return e.session
}

// Get returns userID's live session, or nil when no wizard is in progress
// (never started, completed, ended in error, or evicted as idle).
func (s *Store) Get(userID int64) *domain.SelectionSession {
	e := s.getEntry(userID)
	if e.session != nil && e.session.UpdatedAt.Before(s.now().Add(-s.ttl)) {
		e.session = nil
	}
	return e.session
}

// Touch bumps the session's UpdatedAt after a mutation so TTL eviction
// tracks activity, not creation time.
func (s *Store) Touch(userID int64) {
	if e := s.getEntry(userID); e.session != nil {
		e.session.UpdatedAt = s.now()
	}
}

// End destroys userID's session, if any. The per-user lock stays so a
// stale callback arriving later still serializes against newer steps.
func (s *Store) End(userID int64) {
	s.getEntry(userID).session = nil
}

// Len reports how many users currently have a map entry (live or idle).
// Intended for tests and diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
