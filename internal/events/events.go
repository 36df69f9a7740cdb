// Package events records per-account lifecycle events. Each (account, type)
// pair is recorded at most once, which is what makes finalization
// idempotent: the first writer wins and every later attempt observes the
// duplicate.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event types.
const (
	TypeSignupFinalized = "signup_finalized"
)

// ErrNotFound is returned when no event matches the query.
var ErrNotFound = errors.New("event not found")

// Event is one recorded lifecycle event.
type Event struct {
	ID        string          `json:"id"`
	AccountID string          `json:"accountId"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store persists events with at-most-once semantics per (account, type).
type Store interface {
	// RecordOnce inserts the event unless one with the same account and
	// type already exists. It reports whether this call created the event.
	RecordOnce(ctx context.Context, ev Event) (created bool, err error)

	// Get returns the event for (accountID, eventType), or ErrNotFound.
	Get(ctx context.Context, accountID, eventType string) (Event, error)
}
