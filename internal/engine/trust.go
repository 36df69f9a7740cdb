package engine

import "github.com/meterly/antifraud/internal/scoring"

// TrustLevel is the tier assigned to an account at finalization. Higher
// tiers unlock larger initial credit grants and looser runtime limits.
type TrustLevel string

const (
	TrustNew      TrustLevel = "new"
	TrustBasic    TrustLevel = "basic"
	TrustVerified TrustLevel = "verified"
	TrustTrusted  TrustLevel = "trusted"
	TrustPremium  TrustLevel = "premium"
)

// trustCredits is the initial credit grant per tier. Trusted and premium
// are reserved for post-signup promotion and never assigned at finalize.
var trustCredits = map[TrustLevel]int64{
	TrustNew:      100,
	TrustBasic:    250,
	TrustVerified: 500,
	TrustTrusted:  1000,
	TrustPremium:  2500,
}

// CreditsFor returns the initial credit grant for a tier.
func CreditsFor(level TrustLevel) int64 {
	return trustCredits[level]
}

// tierForSignup maps a finalized decision and score to a trust tier.
// Review always lands on new; allowed signups earn a higher tier the lower
// their score.
func tierForSignup(decision scoring.Decision, score int) TrustLevel {
	if decision != scoring.DecisionAllow {
		return TrustNew
	}
	switch {
	case score <= 10:
		return TrustVerified
	case score <= 25:
		return TrustBasic
	default:
		return TrustNew
	}
}
