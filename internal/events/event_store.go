package events

import (
	"sync"
)

// defaultCapacity bounds the per-account audit trail
const defaultCapacity = 100

// InMemoryStore implements Store with a bounded per-account ring of events.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   map[string][]Event // accountID -> events, oldest first
	capacity int
}

// NewStore creates a new InMemoryStore with the default per-account capacity.
func NewStore() *InMemoryStore {
	return &InMemoryStore{
		events:   make(map[string][]Event),
		capacity: defaultCapacity,
	}
}

// Append saves an event, evicting the oldest past the capacity.
func (s *InMemoryStore) Append(event Event) {
	if event.AccountID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trail := append(s.events[event.AccountID], event)
	if len(trail) > s.capacity {
		trail = trail[len(trail)-s.capacity:]
	}
	s.events[event.AccountID] = trail
}

// Recent returns up to limit events for an account, newest first.
func (s *InMemoryStore) Recent(accountID string, limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trail := s.events[accountID]
	if limit <= 0 || limit > len(trail) {
		limit = len(trail)
	}

	out := make([]Event, 0, limit)
	for i := len(trail) - 1; i >= len(trail)-limit; i-- {
		out = append(out, trail[i])
	}
	return out
}
