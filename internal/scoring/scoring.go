// Package scoring implements deterministic signup risk scoring.
//
// Every signup attempt is scored across 5 weighted categories: network,
// device, email, captcha, and velocity. Scores range 0 (clean) to 100
// (certain abuse). Two configured thresholds split the range into
// allow / review / block, with one hard override: a failed captcha always
// blocks, whatever the rest of the signals say.
package scoring

// Decision represents the engine's verdict on a signup attempt.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
	DecisionBlock  Decision = "block"
)

// IsAllowed reports whether a decision lets account creation proceed
// without human review.
func IsAllowed(d Decision) bool {
	return d == DecisionAllow
}

// Category identifies one scoring category.
type Category string

const (
	CategoryNetwork  Category = "network"
	CategoryDevice   Category = "device"
	CategoryEmail    Category = "email"
	CategoryCaptcha  Category = "captcha"
	CategoryVelocity Category = "velocity"
)

// Flag is a symbolic reason attached to a category contribution. The
// decision must always be explainable from the flags alone, without
// re-running the scorer.
type Flag string

const (
	FlagDatacenterIP      Flag = "DATACENTER_IP"
	FlagHostingIP         Flag = "HOSTING_IP"
	FlagProxyIP           Flag = "PROXY_IP"
	FlagVPNIP             Flag = "VPN_IP"
	FlagUnknownNetwork    Flag = "UNKNOWN_NETWORK"
	FlagMissingFingerprint Flag = "MISSING_FINGERPRINT"
	FlagLowConfidence     Flag = "LOW_CONFIDENCE_FINGERPRINT"
	FlagFingerprintReused Flag = "FINGERPRINT_REUSED"
	FlagAutomationUA      Flag = "AUTOMATION_USER_AGENT"
	FlagDisposableEmail   Flag = "DISPOSABLE_EMAIL"
	FlagMissingMX         Flag = "MISSING_MX"
	FlagCaptchaFailed     Flag = "CAPTCHA_FAILED"
	FlagCaptchaUnverified Flag = "CAPTCHA_UNVERIFIED"
	FlagCaptchaAbuseScore Flag = "CAPTCHA_ABUSE_SCORE"
	FlagIPVelocity        Flag = "IP_VELOCITY"
	FlagIPAccountVelocity Flag = "IP_ACCOUNT_VELOCITY"
	FlagFingerprintVelocity Flag = "FINGERPRINT_VELOCITY"

	// Orchestrator-level flags, attached outside the scorer.
	FlagDegradedMode   Flag = "DEGRADED_MODE"
	FlagEngineDisabled Flag = "ENGINE_DISABLED"
)

// CategoryScore is one category's contribution to the total.
type CategoryScore struct {
	Category Category `json:"category"`
	Points   int      `json:"points"`
	Flags    []Flag   `json:"flags,omitempty"`
}

// Breakdown is the full explainable scoring result. Summing the category
// points and clamping to [0,100] always reproduces Total.
type Breakdown struct {
	Categories []CategoryScore `json:"categories"`
	Total      int             `json:"total"`
}

// Flags returns every triggered flag across all categories.
func (b *Breakdown) Flags() []Flag {
	var flags []Flag
	for _, c := range b.Categories {
		flags = append(flags, c.Flags...)
	}
	return flags
}

// HasFlag reports whether any category triggered the given flag.
func (b *Breakdown) HasFlag(f Flag) bool {
	for _, c := range b.Categories {
		for _, cf := range c.Flags {
			if cf == f {
				return true
			}
		}
	}
	return false
}

// Limits is the read-only scoring configuration: per-category penalties,
// velocity limits, and the two decision thresholds. Loaded once at startup.
type Limits struct {
	// Decision thresholds, inclusive: score >= threshold meets it.
	ReviewThreshold int
	BlockThreshold  int

	// Network
	HostileNetworkPenalty int // datacenter, hosting, proxy, vpn
	UnknownNetworkPenalty int

	// Device
	MissingFingerprintPenalty int
	LowConfidencePenalty      int
	ConfidenceFloor           float64
	FingerprintReusePenalty   int
	MaxAccountsPerFingerprint int // reuse flag at >= this many accounts in window
	AutomationUAPenalty       int

	// Email
	DisposableEmailPenalty int
	MissingMXPenalty       int

	// Captcha
	CaptchaFailPenalty       int
	CaptchaUnknownPenalty    int
	CaptchaAbuseScorePenalty int
	CaptchaAbuseScoreFloor   float64

	// Velocity. Penalties scale with the overflow past the limit and are
	// capped, so a burst reads as worse than a single extra attempt without
	// one hot key saturating the whole score.
	MaxAttemptsPerIP          int
	IPAttemptWeight           int
	IPAttemptPenaltyCap       int
	MaxAccountsPerIP          int
	IPAccountWeight           int
	IPAccountPenaltyCap       int
	MaxAttemptsPerFingerprint int
	FingerprintAttemptWeight  int
	FingerprintPenaltyCap     int
}

// DefaultLimits returns the production default scoring configuration.
func DefaultLimits() Limits {
	return Limits{
		ReviewThreshold: 40,
		BlockThreshold:  70,

		HostileNetworkPenalty: 25,
		UnknownNetworkPenalty: 5,

		MissingFingerprintPenalty: 10,
		LowConfidencePenalty:      10,
		ConfidenceFloor:           0.3,
		FingerprintReusePenalty:   20,
		MaxAccountsPerFingerprint: 2,
		AutomationUAPenalty:       15,

		DisposableEmailPenalty: 25,
		MissingMXPenalty:       10,

		CaptchaFailPenalty:       100,
		CaptchaUnknownPenalty:    15,
		CaptchaAbuseScorePenalty: 10,
		CaptchaAbuseScoreFloor:   0.7,

		MaxAttemptsPerIP:          10,
		IPAttemptWeight:           5,
		IPAttemptPenaltyCap:       30,
		MaxAccountsPerIP:          3,
		IPAccountWeight:           25,
		IPAccountPenaltyCap:       50,
		MaxAttemptsPerFingerprint: 5,
		FingerprintAttemptWeight:  5,
		FingerprintPenaltyCap:     20,
	}
}
