package session

import (
	"sync"
	"time"
)

type storeEntry struct {
	subjectID string
	updatedAt time.Time
}

// Store maps session ids to subject ids. The front desk registers the
// binding before the session's first turn; handlers resolve it when building
// prompts. Stale entries are dropped lazily.
type Store struct {
	mu      sync.Mutex
	entries map[string]storeEntry
	maxAge  time.Duration
}

// NewStore creates a subject-id store. A non-positive maxAge disables
// expiry.
func NewStore(maxAge time.Duration) *Store {
	return &Store{
		entries: make(map[string]storeEntry),
		maxAge:  maxAge,
	}
}

// Put records the subject id for a session.
func (s *Store) Put(sessionID, subjectID string) {
	s.mu.Lock()
	s.entries[sessionID] = storeEntry{subjectID: subjectID, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Get returns the subject id bound to a session, or "".
func (s *Store) Get(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		return ""
	}
	if s.maxAge > 0 && time.Since(entry.updatedAt) > s.maxAge {
		delete(s.entries, sessionID)
		return ""
	}
	return entry.subjectID
}

// Remove drops the binding for a session.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
}
