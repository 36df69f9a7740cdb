package signals

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record // accountID → record
}

// NewMemoryStore creates an in-memory signal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Record(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.AccountID] = &cp
	return nil
}

func (s *MemoryStore) GetByAccount(ctx context.Context, accountID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}
