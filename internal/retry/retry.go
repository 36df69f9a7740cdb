// Package retry retries transient failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// PermanentError marks an error as not worth retrying.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Do gives up on it immediately.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Do runs fn up to maxAttempts times, sleeping between attempts with a
// doubling, jittered delay. It returns the last error once attempts are
// exhausted, unwraps and returns permanent errors without retrying, and
// aborts with ctx.Err() if the context ends during a backoff sleep.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}

		if attempt == maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered(delay)):
		}
		delay *= 2
	}
}

// jittered spreads a delay by +-25% so retries from concurrent requests do
// not land on the store at the same instant.
func jittered(d time.Duration) time.Duration {
	spread := d / 4
	if spread <= 0 {
		return d
	}
	return d - spread + time.Duration(rand.Int63n(int64(2*spread+1)))
}
