package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meterly/antifraud/internal/events"
	"github.com/meterly/antifraud/internal/scoring"
	"github.com/meterly/antifraud/internal/signals"
	"github.com/meterly/antifraud/internal/stats"
	"github.com/meterly/antifraud/internal/validators"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

type stubCaptcha struct {
	result validators.CaptchaResult
	err    error
}

func (s *stubCaptcha) Validate(ctx context.Context, token, remoteIP string) (validators.CaptchaResult, error) {
	return s.result, s.err
}

type stubIntel struct {
	result validators.IntelResult
	err    error
}

func (s *stubIntel) Validate(ctx context.Context, ip string) (validators.IntelResult, error) {
	return s.result, s.err
}

type stubEmail struct {
	result validators.EmailResult
	err    error
}

func (s *stubEmail) Validate(ctx context.Context, domain string) (validators.EmailResult, error) {
	return s.result, s.err
}

// countingStatsStore wraps the memory store and counts increment calls.
type countingStatsStore struct {
	*stats.MemoryStore
	ipIncrements int32
	fpIncrements int32
}

func (c *countingStatsStore) IncrementIPStats(ctx context.Context, ip, emailKey string, accountCreated bool) error {
	atomic.AddInt32(&c.ipIncrements, 1)
	return c.MemoryStore.IncrementIPStats(ctx, ip, emailKey, accountCreated)
}

func (c *countingStatsStore) IncrementFingerprintStats(ctx context.Context, fingerprintID, emailKey string, accountCreated bool) error {
	atomic.AddInt32(&c.fpIncrements, 1)
	return c.MemoryStore.IncrementFingerprintStats(ctx, fingerprintID, emailKey, accountCreated)
}

// downStatsStore fails every read.
type downStatsStore struct{}

func (downStatsStore) GetIPStats(ctx context.Context, ip string) (stats.IPStats, error) {
	return stats.IPStats{}, errors.New("connection refused")
}
func (downStatsStore) GetFingerprintStats(ctx context.Context, id string) (stats.FingerprintStats, error) {
	return stats.FingerprintStats{}, errors.New("connection refused")
}
func (downStatsStore) IncrementIPStats(ctx context.Context, ip, emailKey string, accountCreated bool) error {
	return errors.New("connection refused")
}
func (downStatsStore) IncrementFingerprintStats(ctx context.Context, id, emailKey string, accountCreated bool) error {
	return errors.New("connection refused")
}

type recordingNotifier struct {
	calls int32
}

func (r *recordingNotifier) SignupFlagged(ctx context.Context, accountID string, decision scoring.Decision, score int, flags []scoring.Flag) {
	atomic.AddInt32(&r.calls, 1)
}

type fixture struct {
	engine      *Engine
	stats       *countingStatsStore
	signals     *signals.MemoryStore
	events      *events.MemoryStore
	assessments *MemoryAssessmentStore
	notifier    *recordingNotifier
}

type fixtureOpt func(*fixtureCfg)

type fixtureCfg struct {
	captcha validators.CaptchaValidator
	intel   validators.IPIntelValidator
	email   validators.EmailValidator
	stats   stats.Store
	opts    Options
}

func withStatsStore(s stats.Store) fixtureOpt {
	return func(c *fixtureCfg) { c.stats = s }
}

func withOptions(o Options) fixtureOpt {
	return func(c *fixtureCfg) { c.opts = o }
}

func withCaptcha(v validators.CaptchaValidator) fixtureOpt {
	return func(c *fixtureCfg) { c.captcha = v }
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()

	cfg := fixtureCfg{
		captcha: &stubCaptcha{result: validators.CaptchaResult{Outcome: signals.CaptchaSuccess}},
		intel:   &stubIntel{result: validators.IntelResult{ASN: 7922, Org: "Comcast", Class: "residential"}},
		email:   &stubEmail{result: validators.EmailResult{HasValidMX: true}},
	}
	for _, o := range opts {
		o(&cfg)
	}

	f := &fixture{
		signals:     signals.NewMemoryStore(),
		events:      events.NewMemoryStore(),
		assessments: NewMemoryAssessmentStore(),
		notifier:    &recordingNotifier{},
	}

	f.stats = &countingStatsStore{MemoryStore: stats.NewMemoryStore()}
	statsStore := stats.Store(f.stats)
	if cfg.stats != nil {
		statsStore = cfg.stats
	}

	runner := validators.NewRunner(cfg.captcha, cfg.intel, cfg.email, time.Second)

	f.engine = New(
		scoring.NewScorer(scoring.DefaultLimits()),
		runner,
		statsStore,
		f.signals,
		f.events,
		f.assessments,
		f.notifier,
		cfg.opts,
	)
	return f
}

func cleanRequest() SignupRequest {
	return SignupRequest{
		Email:                 "alice@example.com",
		IP:                    "203.0.113.10",
		UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		FingerprintID:         "fp_abc123",
		FingerprintConfidence: 0.95,
		CaptchaToken:          "tok_good",
	}
}

// ---------------------------------------------------------------------------
// ValidateSignup
// ---------------------------------------------------------------------------

func TestValidateSignupCleanAllows(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.ValidateSignup(context.Background(), cleanRequest())
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}

	if !res.Allowed || res.Decision != scoring.DecisionAllow {
		t.Errorf("Expected allow, got %+v", res)
	}
	if res.RiskScore != 0 {
		t.Errorf("Expected score 0, got %d", res.RiskScore)
	}
	if res.InitialCredits != CreditsFor(TrustVerified) {
		t.Errorf("Zero-score signup should earn verified-tier credits, got %d", res.InitialCredits)
	}
	if res.Signals.Network.Class != signals.ClassResidential {
		t.Errorf("Expected residential class, got %s", res.Signals.Network.Class)
	}
}

func TestValidateSignupPerformsNoWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.ValidateSignup(ctx, cleanRequest()); err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}

	if n := atomic.LoadInt32(&f.stats.ipIncrements); n != 0 {
		t.Errorf("Validate must not increment counters, got %d increments", n)
	}
	s, _ := f.stats.GetIPStats(ctx, "203.0.113.10")
	if s.Attempts != 0 {
		t.Errorf("Validate must not write stats, attempts=%d", s.Attempts)
	}
}

func TestValidateSignupRiskyReviews(t *testing.T) {
	f := newFixture(t, withOptions(Options{ReviewCredits: 50}))

	req := cleanRequest()
	req.FingerprintID = ""
	req.Email = "bob@mailinator.com"

	// Datacenter IP, disposable domain, missing fingerprint: 60 points.
	f.engine.runner = validators.NewRunner(
		&stubCaptcha{result: validators.CaptchaResult{Outcome: signals.CaptchaSuccess}},
		&stubIntel{result: validators.IntelResult{ASN: 14618, Org: "Amazon", Class: "datacenter"}},
		&stubEmail{result: validators.EmailResult{IsDisposable: true, HasValidMX: true}},
		time.Second,
	)

	res, err := f.engine.ValidateSignup(context.Background(), req)
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}

	if res.Decision != scoring.DecisionReview {
		t.Fatalf("Expected review, got %s (score %d)", res.Decision, res.RiskScore)
	}
	if !res.Allowed {
		t.Error("Review decisions still allow account creation")
	}
	if res.InitialCredits != 50 {
		t.Errorf("Review should grant reduced credits, got %d", res.InitialCredits)
	}
	if res.Reason == "" {
		t.Error("Review result should carry a reason")
	}
}

func TestValidateSignupCaptchaFailBlocks(t *testing.T) {
	f := newFixture(t, withCaptcha(&stubCaptcha{result: validators.CaptchaResult{Outcome: signals.CaptchaFail}}))

	res, err := f.engine.ValidateSignup(context.Background(), cleanRequest())
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}

	if res.Decision != scoring.DecisionBlock {
		t.Errorf("Expected block, got %s", res.Decision)
	}
	if res.Allowed {
		t.Error("Blocked signup must not be allowed")
	}
	if res.InitialCredits != 0 {
		t.Errorf("Blocked signup gets no credits, got %d", res.InitialCredits)
	}
	if res.Reason != "captcha verification failed" {
		t.Errorf("Unexpected reason: %q", res.Reason)
	}
}

func TestValidateSignupDegradedMode(t *testing.T) {
	f := newFixture(t, withStatsStore(downStatsStore{}), withOptions(Options{DegradedCredits: 50}))

	res, err := f.engine.ValidateSignup(context.Background(), cleanRequest())
	if err != nil {
		t.Fatalf("Degraded store must not fail validation: %v", err)
	}

	if res.Decision != scoring.DecisionReview {
		t.Errorf("Degraded validation should review, got %s", res.Decision)
	}
	if res.InitialCredits != 50 {
		t.Errorf("Expected degraded credits 50, got %d", res.InitialCredits)
	}

	found := false
	for _, fl := range res.Flags {
		if fl == scoring.FlagDegradedMode {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected DEGRADED_MODE flag, got %v", res.Flags)
	}
}

func TestValidateSignupEngineDisabled(t *testing.T) {
	f := newFixture(t, withOptions(Options{Disabled: true}))

	res, err := f.engine.ValidateSignup(context.Background(), cleanRequest())
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}

	if res.Decision != scoring.DecisionAllow || !res.Allowed {
		t.Errorf("Disabled engine must allow, got %+v", res)
	}
	if res.InitialCredits != CreditsFor(TrustNew) {
		t.Errorf("Disabled engine grants default credits, got %d", res.InitialCredits)
	}
	if len(res.Flags) != 1 || res.Flags[0] != scoring.FlagEngineDisabled {
		t.Errorf("Expected only ENGINE_DISABLED, got %v", res.Flags)
	}
}

func TestValidateSignupCaptchaFailClosed(t *testing.T) {
	f := newFixture(t,
		withCaptcha(&stubCaptcha{result: validators.CaptchaResult{Outcome: signals.CaptchaUnknown}, err: errors.New("outage")}),
		withOptions(Options{CaptchaFailClosed: true}),
	)

	res, err := f.engine.ValidateSignup(context.Background(), cleanRequest())
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}
	if res.Decision != scoring.DecisionBlock {
		t.Errorf("Fail-closed outage should block, got %s", res.Decision)
	}
}

// ---------------------------------------------------------------------------
// FinalizeSignup
// ---------------------------------------------------------------------------

func TestFinalizeSignupPersistsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vr, err := f.engine.ValidateSignup(ctx, cleanRequest())
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}

	res, err := f.engine.FinalizeSignup(ctx, "acc_1", vr)
	if err != nil {
		t.Fatalf("FinalizeSignup: %v", err)
	}

	if res.Replayed {
		t.Error("First finalize must not be a replay")
	}
	if res.TrustLevel != TrustVerified {
		t.Errorf("Expected verified tier, got %s", res.TrustLevel)
	}
	if res.InitialCredits != vr.InitialCredits {
		t.Errorf("Finalize credits should match validate, got %d vs %d", res.InitialCredits, vr.InitialCredits)
	}

	// Signal snapshot persisted.
	rec, err := f.signals.GetByAccount(ctx, "acc_1")
	if err != nil {
		t.Fatalf("Signals not persisted: %v", err)
	}
	if rec.Signals.Network.IP != "203.0.113.10" {
		t.Errorf("Unexpected persisted IP: %s", rec.Signals.Network.IP)
	}

	// Assessment persisted.
	a, err := f.assessments.GetByAccount(ctx, "acc_1")
	if err != nil {
		t.Fatalf("Assessment not persisted: %v", err)
	}
	if a.TrustLevel != TrustVerified || a.Decision != scoring.DecisionAllow {
		t.Errorf("Unexpected assessment: %+v", a)
	}

	// Counters incremented once each.
	s, _ := f.stats.GetIPStats(ctx, "203.0.113.10")
	if s.Attempts != 1 || s.AccountsCreated != 1 {
		t.Errorf("Expected 1/1 IP counters, got %d/%d", s.Attempts, s.AccountsCreated)
	}
	fp, _ := f.stats.GetFingerprintStats(ctx, "fp_abc123")
	if fp.Attempts != 1 || fp.AccountsCreated != 1 {
		t.Errorf("Expected 1/1 fingerprint counters, got %d/%d", fp.Attempts, fp.AccountsCreated)
	}
}

func TestFinalizeSignupIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vr, _ := f.engine.ValidateSignup(ctx, cleanRequest())

	first, err := f.engine.FinalizeSignup(ctx, "acc_2", vr)
	if err != nil {
		t.Fatalf("First finalize: %v", err)
	}
	second, err := f.engine.FinalizeSignup(ctx, "acc_2", vr)
	if err != nil {
		t.Fatalf("Second finalize: %v", err)
	}

	if !second.Replayed {
		t.Error("Second finalize must report a replay")
	}
	if second.TrustLevel != first.TrustLevel ||
		second.InitialCredits != first.InitialCredits ||
		second.RiskScore != first.RiskScore ||
		second.Decision != first.Decision {
		t.Errorf("Replay must return the stored result: %+v vs %+v", first, second)
	}

	// Zero additional counter increments.
	if n := atomic.LoadInt32(&f.stats.ipIncrements); n != 1 {
		t.Errorf("Expected exactly 1 IP increment, got %d", n)
	}
	if n := atomic.LoadInt32(&f.stats.fpIncrements); n != 1 {
		t.Errorf("Expected exactly 1 fingerprint increment, got %d", n)
	}
}

func TestFinalizeSignupReviewGetsNewTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vr := &ValidateResult{
		Allowed:        true,
		RiskScore:      55,
		Decision:       scoring.DecisionReview,
		InitialCredits: 50,
		Signals: signals.Set{
			Network: signals.NetworkSignals{IP: "203.0.113.20"},
			Email:   signals.EmailSignals{Address: "bob@example.com"},
		},
	}

	res, err := f.engine.FinalizeSignup(ctx, "acc_3", vr)
	if err != nil {
		t.Fatalf("FinalizeSignup: %v", err)
	}
	if res.TrustLevel != TrustNew {
		t.Errorf("Review finalize should land on new tier, got %s", res.TrustLevel)
	}
	if res.InitialCredits != 50 {
		t.Errorf("Expected carried credits 50, got %d", res.InitialCredits)
	}

	// Flagged signups notify ops.
	if n := atomic.LoadInt32(&f.notifier.calls); n != 1 {
		t.Errorf("Expected 1 notification, got %d", n)
	}
}

func TestFinalizeSignupStatsWriteFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vr, _ := f.engine.ValidateSignup(ctx, cleanRequest())

	// Swap in a store whose writes fail after validation succeeded.
	f.engine.stats = downStatsStore{}

	res, err := f.engine.FinalizeSignup(ctx, "acc_4", vr)
	if err != nil {
		t.Fatalf("Stats write failure must not fail finalize: %v", err)
	}
	if res.TrustLevel == "" {
		t.Error("Finalize should still return a tier")
	}

	// The assessment made it regardless.
	if _, err := f.assessments.GetByAccount(ctx, "acc_4"); err != nil {
		t.Errorf("Assessment should be stored despite stats failure: %v", err)
	}
}

func TestFinalizeSignupAllowedCleanDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vr, _ := f.engine.ValidateSignup(ctx, cleanRequest())
	if _, err := f.engine.FinalizeSignup(ctx, "acc_5", vr); err != nil {
		t.Fatalf("FinalizeSignup: %v", err)
	}

	if n := atomic.LoadInt32(&f.notifier.calls); n != 0 {
		t.Errorf("Allowed signup should not notify, got %d calls", n)
	}
}

// ---------------------------------------------------------------------------
// Trust tiers
// ---------------------------------------------------------------------------

func TestTierForSignup(t *testing.T) {
	tests := []struct {
		decision scoring.Decision
		score    int
		want     TrustLevel
	}{
		{scoring.DecisionAllow, 0, TrustVerified},
		{scoring.DecisionAllow, 10, TrustVerified},
		{scoring.DecisionAllow, 11, TrustBasic},
		{scoring.DecisionAllow, 25, TrustBasic},
		{scoring.DecisionAllow, 35, TrustNew},
		{scoring.DecisionReview, 5, TrustNew},
		{scoring.DecisionBlock, 90, TrustNew},
	}
	for _, tt := range tests {
		if got := tierForSignup(tt.decision, tt.score); got != tt.want {
			t.Errorf("tierForSignup(%s, %d) = %s, want %s", tt.decision, tt.score, got, tt.want)
		}
	}
}

func TestCreditsForTiers(t *testing.T) {
	if CreditsFor(TrustNew) >= CreditsFor(TrustBasic) ||
		CreditsFor(TrustBasic) >= CreditsFor(TrustVerified) ||
		CreditsFor(TrustVerified) >= CreditsFor(TrustTrusted) ||
		CreditsFor(TrustTrusted) >= CreditsFor(TrustPremium) {
		t.Error("Credit grants must increase with tier")
	}
}
