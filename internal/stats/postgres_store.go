package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists abuse counters in PostgreSQL.
//
// Increments are single-statement upserts: the window check, counter reset,
// and count happen inside one INSERT ... ON CONFLICT DO UPDATE, so
// concurrent increments for the same key serialize on the row without any
// read-modify-write race in application code.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed abuse-stats store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetIPStats(ctx context.Context, ip string) (IPStats, error) {
	st := IPStats{IP: ip}
	err := s.get(ctx, "ip_stats", "ip", ip,
		&st.WindowStart, &st.Attempts, &st.DistinctEmails, &st.AccountsCreated, &st.FirstSeen, &st.LastSeen)
	if err != nil {
		return IPStats{IP: ip}, err
	}
	if Expired(st.WindowStart, time.Now()) {
		return IPStats{IP: ip}, nil
	}
	return st, nil
}

func (s *PostgresStore) GetFingerprintStats(ctx context.Context, fingerprintID string) (FingerprintStats, error) {
	st := FingerprintStats{FingerprintID: fingerprintID}
	err := s.get(ctx, "fingerprint_stats", "fingerprint_id", fingerprintID,
		&st.WindowStart, &st.Attempts, &st.DistinctEmails, &st.AccountsCreated, &st.FirstSeen, &st.LastSeen)
	if err != nil {
		return FingerprintStats{FingerprintID: fingerprintID}, err
	}
	if Expired(st.WindowStart, time.Now()) {
		return FingerprintStats{FingerprintID: fingerprintID}, nil
	}
	return st, nil
}

// get reads one stats row. A missing key is not an error: the caller gets
// zero-value counters via the untouched dest fields.
func (s *PostgresStore) get(ctx context.Context, table, keyCol, key string, dest ...any) error {
	// table and keyCol are compile-time constants from the two callers above.
	q := fmt.Sprintf(`
		SELECT window_start, attempts, distinct_emails, accounts_created, first_seen, last_seen
		FROM %s WHERE %s = $1
	`, table, keyCol)

	err := s.db.QueryRowContext(ctx, q, key).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) IncrementIPStats(ctx context.Context, ip, emailKey string, accountCreated bool) error {
	return s.increment(ctx, "ip_stats", "ip", ip, emailKey, accountCreated)
}

func (s *PostgresStore) IncrementFingerprintStats(ctx context.Context, fingerprintID, emailKey string, accountCreated bool) error {
	return s.increment(ctx, "fingerprint_stats", "fingerprint_id", fingerprintID, emailKey, accountCreated)
}

// increment is the atomic upsert shared by both keyspaces. An elapsed window
// resets the counters and starts a new one in the same statement.
//
// recent_emails is a capped jsonb array of email-key hashes used only for
// the distinct-email count; once the cap is hit the distinct count stops
// growing rather than the row growing unbounded.
func (s *PostgresStore) increment(ctx context.Context, table, keyCol, key, emailKey string, accountCreated bool) error {
	q := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, window_start, attempts, distinct_emails, recent_emails, accounts_created, first_seen, last_seen)
		VALUES (
			$1, NOW(), 1,
			CASE WHEN $2 = '' THEN 0 ELSE 1 END,
			CASE WHEN $2 = '' THEN '[]'::jsonb ELSE jsonb_build_array($2::text) END,
			CASE WHEN $3 THEN 1 ELSE 0 END,
			NOW(), NOW()
		)
		ON CONFLICT (%[2]s) DO UPDATE SET
			attempts = CASE
				WHEN %[1]s.window_start <= NOW() - INTERVAL '24 hours' THEN 1
				ELSE %[1]s.attempts + 1
			END,
			accounts_created = CASE
				WHEN %[1]s.window_start <= NOW() - INTERVAL '24 hours' THEN (CASE WHEN $3 THEN 1 ELSE 0 END)
				ELSE %[1]s.accounts_created + (CASE WHEN $3 THEN 1 ELSE 0 END)
			END,
			distinct_emails = CASE
				WHEN %[1]s.window_start <= NOW() - INTERVAL '24 hours' THEN (CASE WHEN $2 = '' THEN 0 ELSE 1 END)
				WHEN $2 = '' OR %[1]s.recent_emails ? $2::text THEN %[1]s.distinct_emails
				WHEN jsonb_array_length(%[1]s.recent_emails) >= $4 THEN %[1]s.distinct_emails
				ELSE %[1]s.distinct_emails + 1
			END,
			recent_emails = CASE
				WHEN %[1]s.window_start <= NOW() - INTERVAL '24 hours' THEN
					(CASE WHEN $2 = '' THEN '[]'::jsonb ELSE jsonb_build_array($2::text) END)
				WHEN $2 = '' OR %[1]s.recent_emails ? $2::text THEN %[1]s.recent_emails
				WHEN jsonb_array_length(%[1]s.recent_emails) >= $4 THEN %[1]s.recent_emails
				ELSE %[1]s.recent_emails || to_jsonb($2::text)
			END,
			window_start = CASE
				WHEN %[1]s.window_start <= NOW() - INTERVAL '24 hours' THEN NOW()
				ELSE %[1]s.window_start
			END,
			last_seen = NOW()
	`, table, keyCol)

	if _, err := s.db.ExecContext(ctx, q, key, emailKey, accountCreated, maxTrackedEmails); err != nil {
		return fmt.Errorf("failed to increment %s: %w", table, err)
	}
	return nil
}
