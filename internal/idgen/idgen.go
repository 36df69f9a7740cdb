// Package idgen provides random ID generation for domain objects.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a random UUID string.
func New() string {
	return uuid.NewString()
}

// WithPrefix generates a prefixed short ID (e.g. "sig_", "evt_").
// Result is prefix + 24 hex chars taken from a v4 UUID.
func WithPrefix(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + raw[:24]
}
