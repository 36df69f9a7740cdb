package stats

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
// A single mutex guards each keyspace, so increments are atomic per key the
// same way the Postgres upsert is.
type MemoryStore struct {
	mu           sync.Mutex
	ips          map[string]*memEntry
	fingerprints map[string]*memEntry
}

type memEntry struct {
	windowStart     time.Time
	attempts        int
	distinctEmails  int
	accountsCreated int
	firstSeen       time.Time
	lastSeen        time.Time
	emails          map[string]struct{}
}

// NewMemoryStore creates an in-memory abuse-stats store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ips:          make(map[string]*memEntry),
		fingerprints: make(map[string]*memEntry),
	}
}

func (s *MemoryStore) GetIPStats(ctx context.Context, ip string) (IPStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.ips[ip]
	if !ok || Expired(e.windowStart, time.Now()) {
		return IPStats{IP: ip}, nil
	}
	return IPStats{
		IP:              ip,
		WindowStart:     e.windowStart,
		Attempts:        e.attempts,
		DistinctEmails:  e.distinctEmails,
		AccountsCreated: e.accountsCreated,
		FirstSeen:       e.firstSeen,
		LastSeen:        e.lastSeen,
	}, nil
}

func (s *MemoryStore) GetFingerprintStats(ctx context.Context, fingerprintID string) (FingerprintStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.fingerprints[fingerprintID]
	if !ok || Expired(e.windowStart, time.Now()) {
		return FingerprintStats{FingerprintID: fingerprintID}, nil
	}
	return FingerprintStats{
		FingerprintID:   fingerprintID,
		WindowStart:     e.windowStart,
		Attempts:        e.attempts,
		DistinctEmails:  e.distinctEmails,
		AccountsCreated: e.accountsCreated,
		FirstSeen:       e.firstSeen,
		LastSeen:        e.lastSeen,
	}, nil
}

func (s *MemoryStore) IncrementIPStats(ctx context.Context, ip, emailKey string, accountCreated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increment(s.ips, ip, emailKey, accountCreated)
	return nil
}

func (s *MemoryStore) IncrementFingerprintStats(ctx context.Context, fingerprintID, emailKey string, accountCreated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increment(s.fingerprints, fingerprintID, emailKey, accountCreated)
	return nil
}

// increment applies the shared window-reset-then-count logic. Caller holds the lock.
func (s *MemoryStore) increment(m map[string]*memEntry, key, emailKey string, accountCreated bool) {
	now := time.Now()

	e, ok := m[key]
	if !ok {
		e = &memEntry{firstSeen: now, windowStart: now, emails: make(map[string]struct{})}
		m[key] = e
	} else if Expired(e.windowStart, now) {
		e.windowStart = now
		e.attempts = 0
		e.distinctEmails = 0
		e.accountsCreated = 0
		e.emails = make(map[string]struct{})
	}

	e.attempts++
	if accountCreated {
		e.accountsCreated++
	}
	if emailKey != "" {
		if _, seen := e.emails[emailKey]; !seen && len(e.emails) < maxTrackedEmails {
			e.emails[emailKey] = struct{}{}
			e.distinctEmails++
		}
	}
	e.lastSeen = now
}
