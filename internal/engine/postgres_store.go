package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meterly/antifraud/internal/scoring"
)

// PostgresAssessmentStore persists assessments in the risk_scores table.
type PostgresAssessmentStore struct {
	db *sql.DB
}

// NewPostgresAssessmentStore creates a Postgres-backed assessment store.
func NewPostgresAssessmentStore(db *sql.DB) *PostgresAssessmentStore {
	return &PostgresAssessmentStore{db: db}
}

func (s *PostgresAssessmentStore) Save(ctx context.Context, a *Assessment) error {
	flags, err := json.Marshal(a.Flags)
	if err != nil {
		return fmt.Errorf("save assessment: marshal flags: %w", err)
	}
	breakdown, err := json.Marshal(a.Breakdown)
	if err != nil {
		return fmt.Errorf("save assessment: marshal breakdown: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_scores (account_id, score, decision, flags, breakdown, trust_level, initial_credits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO NOTHING`,
		a.AccountID, a.Score, string(a.Decision), flags, breakdown,
		string(a.TrustLevel), a.InitialCredits, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save assessment: %w", err)
	}
	return nil
}

func (s *PostgresAssessmentStore) GetByAccount(ctx context.Context, accountID string) (*Assessment, error) {
	var a Assessment
	var decision, trustLevel string
	var flags, breakdown []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, score, decision, flags, breakdown, trust_level, initial_credits, created_at
		FROM risk_scores
		WHERE account_id = $1`,
		accountID,
	).Scan(&a.AccountID, &a.Score, &decision, &flags, &breakdown, &trustLevel, &a.InitialCredits, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	a.Decision = scoring.Decision(decision)
	a.TrustLevel = TrustLevel(trustLevel)
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &a.Flags); err != nil {
			return nil, fmt.Errorf("get assessment: unmarshal flags: %w", err)
		}
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &a.Breakdown); err != nil {
			return nil, fmt.Errorf("get assessment: unmarshal breakdown: %w", err)
		}
	}
	return &a, nil
}
