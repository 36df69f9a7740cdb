package engine

import (
	"context"
	"errors"
	"time"

	"github.com/meterly/antifraud/internal/scoring"
)

// ErrNotFound is returned when no assessment exists for an account.
var ErrNotFound = errors.New("assessment not found")

// Assessment is the stored risk result for a finalized account. It is the
// source of truth for idempotent finalize replays and the explainability
// read API.
type Assessment struct {
	AccountID      string            `json:"accountId"`
	Score          int               `json:"score"`
	Decision       scoring.Decision  `json:"decision"`
	Flags          []scoring.Flag    `json:"flags"`
	Breakdown      scoring.Breakdown `json:"breakdown"`
	TrustLevel     TrustLevel        `json:"trustLevel"`
	InitialCredits int64             `json:"initialCredits"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// AssessmentStore persists one assessment per account. Save is first-write
// wins: a duplicate save for the same account is a no-op, keeping replayed
// finalizations from rewriting the stored result.
type AssessmentStore interface {
	Save(ctx context.Context, a *Assessment) error
	GetByAccount(ctx context.Context, accountID string) (*Assessment, error)
}
