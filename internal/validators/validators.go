// Package validators wraps the external dependencies consulted during signup
// validation: the captcha provider, the IP intelligence service, and
// disposable-email/MX checks.
//
// Every validator follows the same contract: Validate(ctx, input) returns a
// Result plus an error, where the error is reserved for transport and
// timeout failures. "Invalid" (failed captcha, disposable domain) is a
// normal Result value, not an error. Degraded results always carry safe
// defaults so scoring can proceed.
package validators

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/meterly/antifraud/internal/logging"
	"github.com/meterly/antifraud/internal/metrics"
	"github.com/meterly/antifraud/internal/signals"
)

// CaptchaResult is the outcome of captcha verification.
type CaptchaResult struct {
	Outcome    signals.CaptchaOutcome
	AbuseScore float64
	HasScore   bool
}

// CaptchaValidator verifies a client-submitted challenge token.
type CaptchaValidator interface {
	Validate(ctx context.Context, token, remoteIP string) (CaptchaResult, error)
}

// IntelResult is the raw classification from the IP intelligence service.
type IntelResult struct {
	ASN   int64
	Org   string
	Class string
}

// IPIntelValidator looks up ASN, organization, and classification for an IP.
type IPIntelValidator interface {
	Validate(ctx context.Context, ip string) (IntelResult, error)
}

// EmailResult is the outcome of disposable-domain and MX checks.
type EmailResult struct {
	IsDisposable bool
	HasValidMX   bool
}

// EmailValidator checks a signup email domain.
type EmailValidator interface {
	Validate(ctx context.Context, domain string) (EmailResult, error)
}

// Input bundles what one validation pass needs.
type Input struct {
	CaptchaToken string
	IP           string
	EmailDomain  string
}

// Results carries all validator outcomes for one attempt. Fields for
// validators that failed or timed out hold their degraded defaults.
type Results struct {
	Captcha CaptchaResult
	Intel   IntelResult
	IntelOK bool // false when the lookup degraded; network class falls back to unknown
	Email   EmailResult
}

// Runner executes all validators concurrently under one deadline budget.
// A validator that is still pending at the deadline contributes its degraded
// default rather than stalling the attempt.
type Runner struct {
	captcha CaptchaValidator
	ipintel IPIntelValidator
	email   EmailValidator
	timeout time.Duration
}

// NewRunner creates a validator runner. Any validator may be nil, in which
// case its slot always degrades to the default.
func NewRunner(captcha CaptchaValidator, ipintel IPIntelValidator, email EmailValidator, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Runner{captcha: captcha, ipintel: ipintel, email: email, timeout: timeout}
}

// Run executes the validators for one attempt. It never returns an error:
// dependency degradation is not a failure of the attempt. Cancelling ctx
// cancels all in-flight calls.
func (r *Runner) Run(ctx context.Context, in Input) Results {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Degraded defaults: captcha unknown, intel unknown, MX optimistic.
	res := Results{
		Captcha: CaptchaResult{Outcome: signals.CaptchaUnknown},
		Email:   EmailResult{HasValidMX: true},
	}

	logger := logging.L(ctx)

	g, ctx := errgroup.WithContext(ctx)

	if r.captcha != nil {
		g.Go(func() error {
			r.observe("captcha", logger, func() error {
				c, err := r.captcha.Validate(ctx, in.CaptchaToken, in.IP)
				if err == nil {
					res.Captcha = c
				}
				return err
			})
			return nil
		})
	}

	if r.ipintel != nil && in.IP != "" {
		g.Go(func() error {
			r.observe("ipintel", logger, func() error {
				intel, err := r.ipintel.Validate(ctx, in.IP)
				if err == nil {
					res.Intel = intel
					res.IntelOK = true
				}
				return err
			})
			return nil
		})
	}

	if r.email != nil && in.EmailDomain != "" {
		g.Go(func() error {
			r.observe("email", logger, func() error {
				e, err := r.email.Validate(ctx, in.EmailDomain)
				// The disposable check is a local list lookup with no failure
				// mode, so its half of the result is valid even when the MX
				// lookup degraded.
				res.Email = e
				return err
			})
			return nil
		})
	}

	_ = g.Wait()
	return res
}

// observe wraps one validator call with latency and outcome metrics.
// Goroutines always report nil to the group: one degraded validator must not
// cancel its siblings.
func (r *Runner) observe(name string, logger *slog.Logger, fn func() error) {
	timer := prometheus.NewTimer(metrics.ValidatorDuration.WithLabelValues(name))
	err := fn()
	timer.ObserveDuration()

	if err != nil {
		metrics.ValidatorCallsTotal.WithLabelValues(name, "degraded").Inc()
		logger.Warn("validator degraded", "validator", name, "error", err)
		return
	}
	metrics.ValidatorCallsTotal.WithLabelValues(name, "ok").Inc()
}
