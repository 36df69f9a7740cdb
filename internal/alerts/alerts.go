// Package alerts delivers best-effort webhook notifications for signups
// that finalized on review or block. Delivery is fire-and-forget: a dead
// webhook endpoint never slows down or fails a signup.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/meterly/antifraud/internal/logging"
	"github.com/meterly/antifraud/internal/metrics"
	"github.com/meterly/antifraud/internal/scoring"
)

const deliverTimeout = 5 * time.Second

// Alert is the webhook payload for one flagged signup.
type Alert struct {
	Type      string           `json:"type"`
	AccountID string           `json:"accountId"`
	Decision  scoring.Decision `json:"decision"`
	Score     int              `json:"score"`
	Flags     []scoring.Flag   `json:"flags"`
	Timestamp time.Time        `json:"timestamp"`
}

// Webhook posts alerts to a configured endpoint.
type Webhook struct {
	client *http.Client
	url    string
}

// NewWebhook creates a webhook notifier. url may be empty, in which case
// every notification is a no-op.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: deliverTimeout},
		url:    url,
	}
}

// SignupFlagged delivers an alert for a review or block finalization.
// It returns immediately; delivery happens on a detached goroutine with its
// own timeout so a cancelled finalize request cannot abort it.
func (w *Webhook) SignupFlagged(ctx context.Context, accountID string, decision scoring.Decision, score int, flags []scoring.Flag) {
	if w.url == "" {
		return
	}

	logger := logging.L(ctx)
	alert := Alert{
		Type:      "signup_flagged",
		AccountID: accountID,
		Decision:  decision,
		Score:     score,
		Flags:     flags,
		Timestamp: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()

		if err := w.deliver(ctx, alert); err != nil {
			metrics.AlertDeliveriesTotal.WithLabelValues("error").Inc()
			logger.Warn("alert delivery failed", "account_id", accountID, "error", err)
			return
		}
		metrics.AlertDeliveriesTotal.WithLabelValues("ok").Inc()
	}()
}

func (w *Webhook) deliver(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
