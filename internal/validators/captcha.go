package validators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meterly/antifraud/internal/signals"
)

const defaultCaptchaVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// TurnstileValidator verifies challenge tokens against a
// Turnstile-compatible siteverify endpoint.
type TurnstileValidator struct {
	client    *http.Client
	secret    string
	verifyURL string
}

// NewTurnstileValidator creates a captcha validator. verifyURL may be empty
// to use the Cloudflare endpoint.
func NewTurnstileValidator(secret, verifyURL string) *TurnstileValidator {
	if verifyURL == "" {
		verifyURL = defaultCaptchaVerifyURL
	}
	return &TurnstileValidator{
		client:    &http.Client{Timeout: 5 * time.Second},
		secret:    secret,
		verifyURL: verifyURL,
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Validate checks a token with the provider. A missing token is a definitive
// failure, not a degraded lookup. Transport and non-2xx failures return
// CaptchaUnknown along with the error.
func (v *TurnstileValidator) Validate(ctx context.Context, token, remoteIP string) (CaptchaResult, error) {
	if token == "" {
		return CaptchaResult{Outcome: signals.CaptchaFail}, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return CaptchaResult{Outcome: signals.CaptchaUnknown}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return CaptchaResult{Outcome: signals.CaptchaUnknown}, fmt.Errorf("captcha verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CaptchaResult{Outcome: signals.CaptchaUnknown}, fmt.Errorf("captcha verify: status %d", resp.StatusCode)
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return CaptchaResult{Outcome: signals.CaptchaUnknown}, fmt.Errorf("captcha verify: decode: %w", err)
	}

	out := CaptchaResult{Outcome: signals.CaptchaFail}
	if body.Success {
		out.Outcome = signals.CaptchaSuccess
	}
	if body.Score != nil {
		out.AbuseScore = *body.Score
		out.HasScore = true
	}
	return out, nil
}
