package engine

import (
	"context"
	"sync"
)

// MemoryAssessmentStore is an in-memory AssessmentStore for tests and
// single-node deployments.
type MemoryAssessmentStore struct {
	mu          sync.RWMutex
	assessments map[string]*Assessment
}

// NewMemoryAssessmentStore creates an empty in-memory assessment store.
func NewMemoryAssessmentStore() *MemoryAssessmentStore {
	return &MemoryAssessmentStore{assessments: make(map[string]*Assessment)}
}

func (s *MemoryAssessmentStore) Save(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assessments[a.AccountID]; exists {
		return nil
	}
	cp := *a
	s.assessments[a.AccountID] = &cp
	return nil
}

func (s *MemoryAssessmentStore) GetByAccount(ctx context.Context, accountID string) (*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assessments[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}
