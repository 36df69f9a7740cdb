// Package stats maintains rolling abuse counters keyed by IP and by device
// fingerprint.
//
// Windowing policy: each key holds a single counter set plus a windowStart
// timestamp. A window is 24 hours. Expiry is handled logically on read (an
// elapsed window reads as zero-value stats) and physically on the next
// increment (the increment resets the counters and starts a new window).
// The two sides agree on the same boundary, so counts never leak across
// windows in either direction.
package stats

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Window is the rolling counter window.
const Window = 24 * time.Hour

// maxTrackedEmails caps the per-key recent-email set used for the
// distinct-email count. Past the cap the distinct count stops growing
// (bounded undercount) rather than the row growing without limit.
const maxTrackedEmails = 32

// IPStats are the rolling counters for one client IP.
type IPStats struct {
	IP              string    `json:"ip"`
	WindowStart     time.Time `json:"windowStart"`
	Attempts        int       `json:"attempts"`
	DistinctEmails  int       `json:"distinctEmails"`
	AccountsCreated int       `json:"accountsCreated"`
	FirstSeen       time.Time `json:"firstSeen"`
	LastSeen        time.Time `json:"lastSeen"`
}

// FingerprintStats are the rolling counters for one device fingerprint.
type FingerprintStats struct {
	FingerprintID   string    `json:"fingerprintId"`
	WindowStart     time.Time `json:"windowStart"`
	Attempts        int       `json:"attempts"`
	DistinctEmails  int       `json:"distinctEmails"`
	AccountsCreated int       `json:"accountsCreated"`
	FirstSeen       time.Time `json:"firstSeen"`
	LastSeen        time.Time `json:"lastSeen"`
}

// Store is the durable counter store. Reads return zero-value stats (not an
// error) for keys that have never been seen or whose window has elapsed.
// Increments must be atomic per key: concurrent increments for the same key
// must not lose updates.
type Store interface {
	GetIPStats(ctx context.Context, ip string) (IPStats, error)
	GetFingerprintStats(ctx context.Context, fingerprintID string) (FingerprintStats, error)
	IncrementIPStats(ctx context.Context, ip, emailKey string, accountCreated bool) error
	IncrementFingerprintStats(ctx context.Context, fingerprintID, emailKey string, accountCreated bool) error
}

// EmailKey derives the stable distinct-email key for an address. Stats rows
// carry this hash, never the address itself.
func EmailKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:16])
}

// Expired reports whether a window that started at windowStart has elapsed
// as of now.
func Expired(windowStart, now time.Time) bool {
	return !windowStart.After(now.Add(-Window))
}
