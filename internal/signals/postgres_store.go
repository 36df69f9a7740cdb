package signals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists signal snapshots in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed signal store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (
			id, account_id, ip, asn, org, network_class,
			browser, os, fingerprint_id, fingerprint_confidence,
			email_domain, is_disposable, has_valid_mx,
			captcha_outcome, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (account_id) DO NOTHING
	`,
		rec.ID,
		rec.AccountID,
		rec.Signals.Network.IP,
		rec.Signals.Network.ASN,
		rec.Signals.Network.Org,
		string(rec.Signals.Network.Class),
		rec.Signals.Device.Browser,
		rec.Signals.Device.OS,
		nullString(rec.Signals.Device.FingerprintID),
		rec.Signals.Device.FingerprintConfidence,
		rec.Signals.Email.Domain,
		rec.Signals.Email.IsDisposable,
		rec.Signals.Email.HasValidMX,
		string(rec.Signals.Captcha.Outcome),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record signals: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByAccount(ctx context.Context, accountID string) (*Record, error) {
	var (
		rec         Record
		fingerprint sql.NullString
		class       string
		outcome     string
		createdAt   time.Time
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, ip, asn, org, network_class,
		       browser, os, fingerprint_id, fingerprint_confidence,
		       email_domain, is_disposable, has_valid_mx,
		       captcha_outcome, created_at
		FROM signals
		WHERE account_id = $1
	`, accountID).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.Signals.Network.IP,
		&rec.Signals.Network.ASN,
		&rec.Signals.Network.Org,
		&class,
		&rec.Signals.Device.Browser,
		&rec.Signals.Device.OS,
		&fingerprint,
		&rec.Signals.Device.FingerprintConfidence,
		&rec.Signals.Email.Domain,
		&rec.Signals.Email.IsDisposable,
		&rec.Signals.Email.HasValidMX,
		&outcome,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signals: %w", err)
	}

	rec.Signals.Network.Class = NetworkClass(class)
	rec.Signals.Captcha.Outcome = CaptchaOutcome(outcome)
	rec.Signals.Device.FingerprintID = fingerprint.String
	rec.CreatedAt = createdAt
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
