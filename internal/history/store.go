// Package history keeps the ordered log of advisory suggestions for one
// tuning session.
package history

import (
	"sync"
	"time"
)

// Entry is one suggestion returned by the advisor.
type Entry struct {
	Seq       int       `json:"seq"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is an append-only log. Entries are never modified or removed.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Append stores text as the next entry and returns it. Sequence numbers
// start at 0 and increase by one per call.
func (s *Store) Append(text string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{
		Seq:       len(s.entries),
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	s.entries = append(s.entries, e)
	return e
}

// Latest returns the most recently appended entry.
func (s *Store) Latest() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// All returns a copy of every entry in append order.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

