package events

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-node deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]Event // keyed by accountID + "\x00" + type
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]Event)}
}

func key(accountID, eventType string) string {
	return accountID + "\x00" + eventType
}

func (s *MemoryStore) RecordOnce(ctx context.Context, ev Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(ev.AccountID, ev.Type)
	if _, exists := s.events[k]; exists {
		return false, nil
	}
	s.events[k] = ev
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, accountID, eventType string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[key(accountID, eventType)]
	if !ok {
		return Event{}, ErrNotFound
	}
	return ev, nil
}
