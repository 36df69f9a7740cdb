// Package engine orchestrates signup risk assessment: signal extraction,
// external validation, abuse-stat reads, scoring, and the two-phase
// validate/finalize workflow.
//
// ValidateSignup is side-effect free: it extracts signals, runs validators,
// reads (never increments) the abuse counters, and returns a decision the
// caller uses to gate account creation. FinalizeSignup runs after the
// account exists and performs every durable write exactly once per account:
// signal snapshot, stored assessment, counter increments, and the event log
// entry whose uniqueness makes replays no-ops.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meterly/antifraud/internal/events"
	"github.com/meterly/antifraud/internal/idgen"
	"github.com/meterly/antifraud/internal/logging"
	"github.com/meterly/antifraud/internal/metrics"
	"github.com/meterly/antifraud/internal/retry"
	"github.com/meterly/antifraud/internal/scoring"
	"github.com/meterly/antifraud/internal/signals"
	"github.com/meterly/antifraud/internal/stats"
	"github.com/meterly/antifraud/internal/validators"
)

// SignupRequest is the client-visible input to one signup attempt.
type SignupRequest struct {
	Email                 string  `json:"email" binding:"required"`
	Name                  string  `json:"name,omitempty"`
	IP                    string  `json:"ip,omitempty"` // filled from the connection when absent
	UserAgent             string  `json:"userAgent,omitempty"`
	FingerprintID         string  `json:"fingerprintId,omitempty"`
	FingerprintConfidence float64 `json:"fingerprintConfidence,omitempty"`
	CaptchaToken          string  `json:"captchaToken,omitempty"`
	ScreenResolution      string  `json:"screenResolution,omitempty"`
	Language              string  `json:"language,omitempty"`
	Timezone              string  `json:"timezone,omitempty"`
}

// ValidateResult is the outcome of ValidateSignup. The embedded signal set
// and breakdown travel back to FinalizeSignup, which persists them; nothing
// is stored for attempts that never finalize.
type ValidateResult struct {
	Allowed        bool              `json:"allowed"`
	RiskScore      int               `json:"riskScore"`
	Decision       scoring.Decision  `json:"decision"`
	Reason         string            `json:"reason,omitempty"`
	Flags          []scoring.Flag    `json:"flags"`
	InitialCredits int64             `json:"initialCredits"`
	Breakdown      scoring.Breakdown `json:"breakdown"`
	Signals        signals.Set       `json:"signals"`
}

// FinalizeResult is the outcome of FinalizeSignup.
type FinalizeResult struct {
	TrustLevel     TrustLevel       `json:"trustLevel"`
	InitialCredits int64            `json:"initialCredits"`
	RiskScore      int              `json:"riskScore"`
	Decision       scoring.Decision `json:"decision"`
	Replayed       bool             `json:"replayed"`
}

// Notifier receives finalized signups that landed on review or block.
// Implementations must not block the finalize path.
type Notifier interface {
	SignupFlagged(ctx context.Context, accountID string, decision scoring.Decision, score int, flags []scoring.Flag)
}

// Options tune engine policy outside the scoring limits.
type Options struct {
	// Disabled short-circuits every validation to allow. Used as a
	// break-glass toggle when the engine itself misbehaves.
	Disabled bool

	// ReviewCredits is the reduced grant for review-decision signups.
	ReviewCredits int64

	// DegradedCredits is the conservative grant used when the backing
	// store is unreachable during validation.
	DegradedCredits int64

	// CaptchaFailClosed treats an unverifiable captcha (provider outage)
	// as a failure instead of an unknown.
	CaptchaFailClosed bool
}

// Engine composes the risk pipeline. All dependencies are interfaces; the
// zero-dependency configuration (memory stores, nil notifier) is fully
// functional for tests.
type Engine struct {
	scorer      *scoring.Scorer
	runner      *validators.Runner
	stats       stats.Store
	signals     signals.Store
	events      events.Store
	assessments AssessmentStore
	notifier    Notifier
	opts        Options
	now         func() time.Time
}

// New creates an Engine. notifier may be nil.
func New(scorer *scoring.Scorer, runner *validators.Runner, statsStore stats.Store, signalStore signals.Store, eventStore events.Store, assessmentStore AssessmentStore, notifier Notifier, opts Options) *Engine {
	if opts.ReviewCredits <= 0 {
		opts.ReviewCredits = 50
	}
	if opts.DegradedCredits <= 0 {
		opts.DegradedCredits = 50
	}
	return &Engine{
		scorer:      scorer,
		runner:      runner,
		stats:       statsStore,
		signals:     signalStore,
		events:      eventStore,
		assessments: assessmentStore,
		notifier:    notifier,
		opts:        opts,
		now:         time.Now,
	}
}

// ValidateSignup assesses one signup attempt. It performs no durable
// writes: counters are read, not incremented, and the signal snapshot is
// returned to the caller rather than stored. Store unavailability degrades
// the attempt to a review decision instead of failing it.
func (e *Engine) ValidateSignup(ctx context.Context, req SignupRequest) (*ValidateResult, error) {
	logger := logging.L(ctx)

	if e.opts.Disabled {
		res := &ValidateResult{
			Allowed:        true,
			Decision:       scoring.DecisionAllow,
			Reason:         "risk engine disabled",
			Flags:          []scoring.Flag{scoring.FlagEngineDisabled},
			InitialCredits: CreditsFor(TrustNew),
		}
		metrics.ValidationsTotal.WithLabelValues(string(res.Decision)).Inc()
		return res, nil
	}

	emailSig := signals.ExtractEmailSignals(req.Email)

	run := e.runner.Run(ctx, validators.Input{
		CaptchaToken: req.CaptchaToken,
		IP:           req.IP,
		EmailDomain:  emailSig.Domain,
	})

	emailSig.IsDisposable = run.Email.IsDisposable
	emailSig.HasValidMX = run.Email.HasValidMX

	captchaOutcome := run.Captcha.Outcome
	if captchaOutcome == signals.CaptchaUnknown && e.opts.CaptchaFailClosed {
		captchaOutcome = signals.CaptchaFail
	}

	device := signals.ParseUserAgent(req.UserAgent)
	device.FingerprintID = req.FingerprintID
	device.FingerprintConfidence = req.FingerprintConfidence

	var lookup signals.NetworkLookup
	if run.IntelOK {
		lookup = signals.NetworkLookup{ASN: run.Intel.ASN, Org: run.Intel.Org, Class: run.Intel.Class}
	}
	network := signals.ExtractNetworkSignals(req.IP, lookup)

	sig := signals.Set{
		Network: network,
		Device:  device,
		Email:   emailSig,
		Captcha: signals.CaptchaSignals{
			Token:      req.CaptchaToken,
			Outcome:    captchaOutcome,
			AbuseScore: run.Captcha.AbuseScore,
			HasScore:   run.Captcha.HasScore,
		},
	}

	ipStats, fpStats, degraded := e.readStats(ctx, network.IP, device.FingerprintID)

	breakdown, decision := e.scorer.Score(sig, ipStats, fpStats)

	res := &ValidateResult{
		RiskScore: breakdown.Total,
		Decision:  decision,
		Breakdown: breakdown,
		Signals:   sig,
	}

	if degraded {
		// Counters were unreadable: score what we have, then floor the
		// decision at review so unreadable velocity history cannot turn
		// into an unconditional allow.
		metrics.DegradedValidationsTotal.Inc()
		logger.Warn("validation degraded, stats store unreachable", "ip", network.IP)
		res.Breakdown.Categories = append(res.Breakdown.Categories, scoring.CategoryScore{
			Category: scoring.CategoryVelocity,
			Flags:    []scoring.Flag{scoring.FlagDegradedMode},
		})
		if res.Decision == scoring.DecisionAllow {
			res.Decision = scoring.DecisionReview
		}
	}

	res.Allowed = res.Decision != scoring.DecisionBlock
	res.Flags = res.Breakdown.Flags()
	res.Reason = reasonFor(res.Decision, &res.Breakdown)
	res.InitialCredits = e.creditsFor(res.Decision, res.RiskScore, degraded)

	metrics.ValidationsTotal.WithLabelValues(string(res.Decision)).Inc()
	logger.Info("signup validated",
		"decision", res.Decision,
		"score", res.RiskScore,
		"flags", len(res.Flags),
		"email_domain", emailSig.Domain,
	)
	return res, nil
}

// readStats reads both counters, degrading to zero-value stats when the
// store is unreachable. The second return is the fingerprint counters, the
// third reports degradation.
func (e *Engine) readStats(ctx context.Context, ip, fingerprintID string) (stats.IPStats, stats.FingerprintStats, bool) {
	var degraded bool

	ipStats, err := e.stats.GetIPStats(ctx, ip)
	if err != nil {
		degraded = true
		ipStats = stats.IPStats{IP: ip}
	}

	var fpStats stats.FingerprintStats
	if fingerprintID != "" {
		fpStats, err = e.stats.GetFingerprintStats(ctx, fingerprintID)
		if err != nil {
			degraded = true
			fpStats = stats.FingerprintStats{FingerprintID: fingerprintID}
		}
	}

	return ipStats, fpStats, degraded
}

// creditsFor applies the credit policy for a validated decision.
func (e *Engine) creditsFor(decision scoring.Decision, score int, degraded bool) int64 {
	switch decision {
	case scoring.DecisionBlock:
		return 0
	case scoring.DecisionReview:
		if degraded {
			return e.opts.DegradedCredits
		}
		return e.opts.ReviewCredits
	default:
		return CreditsFor(tierForSignup(decision, score))
	}
}

// reasonFor derives the caller-facing explanation for a decision.
func reasonFor(decision scoring.Decision, b *scoring.Breakdown) string {
	switch {
	case b.HasFlag(scoring.FlagCaptchaFailed):
		return "captcha verification failed"
	case b.HasFlag(scoring.FlagDegradedMode):
		return "risk assessment degraded, manual review required"
	case decision == scoring.DecisionBlock:
		return fmt.Sprintf("risk score %d at or above block threshold", b.Total)
	case decision == scoring.DecisionReview:
		return fmt.Sprintf("risk score %d at or above review threshold", b.Total)
	default:
		return ""
	}
}

// FinalizeSignup persists the durable state for a created account:
// signal snapshot, assessment, counter increments, and the event log entry.
// It is idempotent per account: a repeat call performs no writes and
// returns the originally stored result with Replayed set.
//
// Only an undecidable idempotency check is an error. Individual write
// failures after the event is claimed are retried once, then logged; the
// account is never rolled back for them.
func (e *Engine) FinalizeSignup(ctx context.Context, accountID string, vr *ValidateResult) (*FinalizeResult, error) {
	logger := logging.L(ctx)
	now := e.now().UTC()

	tier := tierForSignup(vr.Decision, vr.RiskScore)

	result := &FinalizeResult{
		TrustLevel:     tier,
		InitialCredits: vr.InitialCredits,
		RiskScore:      vr.RiskScore,
		Decision:       vr.Decision,
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("finalize: marshal result: %w", err)
	}

	created, err := e.events.RecordOnce(ctx, events.Event{
		ID:        idgen.WithPrefix("evt_"),
		AccountID: accountID,
		Type:      events.TypeSignupFinalized,
		Payload:   payload,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("finalize: record event: %w", err)
	}

	if !created {
		metrics.FinalizeReplaysTotal.Inc()
		return e.replay(ctx, accountID)
	}

	e.persistWithRetry(ctx, "signals", func() error {
		return e.signals.Record(ctx, &signals.Record{
			ID:        idgen.WithPrefix("sig_"),
			AccountID: accountID,
			Signals:   vr.Signals,
			CreatedAt: now,
		})
	})

	e.persistWithRetry(ctx, "assessment", func() error {
		return e.assessments.Save(ctx, &Assessment{
			AccountID:      accountID,
			Score:          vr.RiskScore,
			Decision:       vr.Decision,
			Flags:          vr.Flags,
			Breakdown:      vr.Breakdown,
			TrustLevel:     tier,
			InitialCredits: vr.InitialCredits,
			CreatedAt:      now,
		})
	})

	emailKey := stats.EmailKey(vr.Signals.Email.Address)
	if ip := vr.Signals.Network.IP; ip != "" {
		e.persistWithRetry(ctx, "ip_stats", func() error {
			return e.stats.IncrementIPStats(ctx, ip, emailKey, true)
		})
	}
	if fp := vr.Signals.Device.FingerprintID; fp != "" {
		e.persistWithRetry(ctx, "fingerprint_stats", func() error {
			return e.stats.IncrementFingerprintStats(ctx, fp, emailKey, true)
		})
	}

	metrics.FinalizationsTotal.WithLabelValues(string(tier)).Inc()
	logger.Info("signup finalized",
		"account_id", accountID,
		"trust_level", tier,
		"decision", vr.Decision,
		"score", vr.RiskScore,
	)

	if e.notifier != nil && vr.Decision != scoring.DecisionAllow {
		e.notifier.SignupFlagged(ctx, accountID, vr.Decision, vr.RiskScore, vr.Flags)
	}

	return result, nil
}

// replay rebuilds the finalize response from the stored assessment, falling
// back to the event payload when the assessment write itself was lost.
func (e *Engine) replay(ctx context.Context, accountID string) (*FinalizeResult, error) {
	if a, err := e.assessments.GetByAccount(ctx, accountID); err == nil {
		return &FinalizeResult{
			TrustLevel:     a.TrustLevel,
			InitialCredits: a.InitialCredits,
			RiskScore:      a.Score,
			Decision:       a.Decision,
			Replayed:       true,
		}, nil
	}

	ev, err := e.events.Get(ctx, accountID, events.TypeSignupFinalized)
	if err != nil {
		return nil, fmt.Errorf("finalize replay: %w", err)
	}
	var result FinalizeResult
	if err := json.Unmarshal(ev.Payload, &result); err != nil {
		return nil, fmt.Errorf("finalize replay: decode payload: %w", err)
	}
	result.Replayed = true
	return &result, nil
}

// persistWithRetry runs one finalize write, retrying once on failure. A
// second failure is logged as a warning; finalize itself still succeeds.
func (e *Engine) persistWithRetry(ctx context.Context, name string, fn func() error) {
	attempt := 0
	err := retry.Do(ctx, 2, 100*time.Millisecond, func() error {
		attempt++
		if attempt > 1 {
			metrics.StatsWriteRetriesTotal.Inc()
		}
		return fn()
	})
	if err != nil {
		logging.L(ctx).Warn("finalize write failed", "write", name, "error", err)
	}
}

// GetAssessment returns the stored assessment for an account.
func (e *Engine) GetAssessment(ctx context.Context, accountID string) (*Assessment, error) {
	return e.assessments.GetByAccount(ctx, accountID)
}
