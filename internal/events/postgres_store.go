package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore persists events in PostgreSQL. The UNIQUE(account_id, type)
// constraint enforces at-most-once recording across instances.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RecordOnce(ctx context.Context, ev Event) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, account_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, type) DO NOTHING`,
		ev.ID, ev.AccountID, ev.Type, nullableJSON(ev.Payload), ev.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) Get(ctx context.Context, accountID, eventType string) (Event, error) {
	var ev Event
	var payload sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, type, payload, created_at
		FROM events
		WHERE account_id = $1 AND type = $2`,
		accountID, eventType,
	).Scan(&ev.ID, &ev.AccountID, &ev.Type, &payload, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get event: %w", err)
	}
	if payload.Valid {
		ev.Payload = []byte(payload.String)
	}
	return ev, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
