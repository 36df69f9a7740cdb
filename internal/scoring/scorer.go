package scoring

import (
	"github.com/meterly/antifraud/internal/signals"
	"github.com/meterly/antifraud/internal/stats"
)

// Scorer computes risk scores from signals and abuse stats. It is a pure
// function of its inputs plus the configured limits: same inputs, same
// breakdown, every time.
type Scorer struct {
	limits Limits
}

// NewScorer creates a scorer with the given limits.
func NewScorer(limits Limits) *Scorer {
	return &Scorer{limits: limits}
}

// Limits returns the scorer's configuration.
func (s *Scorer) Limits() Limits {
	return s.limits
}

// Score evaluates one signup attempt. The returned breakdown carries every
// triggered flag; the decision follows the thresholds (inclusive) except for
// the captcha hard-fail override, which blocks regardless of total.
func (s *Scorer) Score(sig signals.Set, ip stats.IPStats, fp stats.FingerprintStats) (Breakdown, Decision) {
	b := Breakdown{
		Categories: []CategoryScore{
			s.scoreNetwork(sig.Network),
			s.scoreDevice(sig.Device, fp),
			s.scoreEmail(sig.Email),
			s.scoreCaptcha(sig.Captcha),
			s.scoreVelocity(ip, fp),
		},
	}

	total := 0
	for _, c := range b.Categories {
		total += c.Points
	}
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	b.Total = total

	// Hard rule: a failed captcha is never outvoted by clean categories.
	if sig.Captcha.Outcome == signals.CaptchaFail {
		return b, DecisionBlock
	}

	switch {
	case total >= s.limits.BlockThreshold:
		return b, DecisionBlock
	case total >= s.limits.ReviewThreshold:
		return b, DecisionReview
	default:
		return b, DecisionAllow
	}
}

func (s *Scorer) scoreNetwork(n signals.NetworkSignals) CategoryScore {
	c := CategoryScore{Category: CategoryNetwork}

	switch n.Class {
	case signals.ClassDatacenter:
		c.add(s.limits.HostileNetworkPenalty, FlagDatacenterIP)
	case signals.ClassHosting:
		c.add(s.limits.HostileNetworkPenalty, FlagHostingIP)
	case signals.ClassProxy:
		c.add(s.limits.HostileNetworkPenalty, FlagProxyIP)
	case signals.ClassVPN:
		c.add(s.limits.HostileNetworkPenalty, FlagVPNIP)
	case signals.ClassResidential:
		// clean
	default:
		c.add(s.limits.UnknownNetworkPenalty, FlagUnknownNetwork)
	}

	return c
}

func (s *Scorer) scoreDevice(d signals.DeviceSignals, fp stats.FingerprintStats) CategoryScore {
	c := CategoryScore{Category: CategoryDevice}

	if d.FingerprintID == "" {
		c.add(s.limits.MissingFingerprintPenalty, FlagMissingFingerprint)
	} else {
		if d.FingerprintConfidence < s.limits.ConfidenceFloor {
			c.add(s.limits.LowConfidencePenalty, FlagLowConfidence)
		}
		if fp.AccountsCreated >= s.limits.MaxAccountsPerFingerprint {
			c.add(s.limits.FingerprintReusePenalty, FlagFingerprintReused)
		}
	}

	if d.Browser == signals.FamilyBot {
		c.add(s.limits.AutomationUAPenalty, FlagAutomationUA)
	}

	return c
}

func (s *Scorer) scoreEmail(e signals.EmailSignals) CategoryScore {
	c := CategoryScore{Category: CategoryEmail}

	if e.IsDisposable {
		c.add(s.limits.DisposableEmailPenalty, FlagDisposableEmail)
	}
	if !e.HasValidMX {
		c.add(s.limits.MissingMXPenalty, FlagMissingMX)
	}

	return c
}

func (s *Scorer) scoreCaptcha(cs signals.CaptchaSignals) CategoryScore {
	c := CategoryScore{Category: CategoryCaptcha}

	switch cs.Outcome {
	case signals.CaptchaFail:
		c.add(s.limits.CaptchaFailPenalty, FlagCaptchaFailed)
	case signals.CaptchaUnknown:
		c.add(s.limits.CaptchaUnknownPenalty, FlagCaptchaUnverified)
	case signals.CaptchaSuccess:
		// A passed challenge with a provider-reported abuse score past the
		// floor still costs points: success never downgrades other flags,
		// but the provider signal is not thrown away either.
		if cs.HasScore && cs.AbuseScore >= s.limits.CaptchaAbuseScoreFloor {
			c.add(s.limits.CaptchaAbuseScorePenalty, FlagCaptchaAbuseScore)
		}
	}

	return c
}

func (s *Scorer) scoreVelocity(ip stats.IPStats, fp stats.FingerprintStats) CategoryScore {
	c := CategoryScore{Category: CategoryVelocity}

	if over := ip.Attempts - s.limits.MaxAttemptsPerIP; over > 0 {
		c.add(capped(over*s.limits.IPAttemptWeight, s.limits.IPAttemptPenaltyCap), FlagIPVelocity)
	}
	if over := ip.AccountsCreated - s.limits.MaxAccountsPerIP; over > 0 {
		c.add(capped(over*s.limits.IPAccountWeight, s.limits.IPAccountPenaltyCap), FlagIPAccountVelocity)
	}
	if over := fp.Attempts - s.limits.MaxAttemptsPerFingerprint; over > 0 {
		c.add(capped(over*s.limits.FingerprintAttemptWeight, s.limits.FingerprintPenaltyCap), FlagFingerprintVelocity)
	}

	return c
}

func (c *CategoryScore) add(points int, flag Flag) {
	c.Points += points
	c.Flags = append(c.Flags, flag)
}

func capped(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}
