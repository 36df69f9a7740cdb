package signals

import (
	"net"
	"strings"
)

// NetworkLookup carries the raw result of an IP intelligence lookup.
// The lookup itself is an external call made by the orchestrator; extraction
// only normalizes whatever came back (possibly nothing).
type NetworkLookup struct {
	ASN   int64
	Org   string
	Class string // provider classification string, free-form
}

// ExtractNetworkSignals normalizes an IP plus lookup result into NetworkSignals.
// An unparseable IP or unrecognized classification yields ClassUnknown.
func ExtractNetworkSignals(ip string, lookup NetworkLookup) NetworkSignals {
	sig := NetworkSignals{
		IP:    strings.TrimSpace(ip),
		ASN:   lookup.ASN,
		Org:   strings.TrimSpace(lookup.Org),
		Class: normalizeClass(lookup.Class),
	}

	if net.ParseIP(sig.IP) == nil {
		sig.IP = ""
		sig.Class = ClassUnknown
	}

	return sig
}

func normalizeClass(raw string) NetworkClass {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "residential", "isp", "mobile":
		return ClassResidential
	case "hosting":
		return ClassHosting
	case "datacenter", "data center", "cloud":
		return ClassDatacenter
	case "proxy", "public proxy", "web proxy":
		return ClassProxy
	case "vpn":
		return ClassVPN
	default:
		return ClassUnknown
	}
}

// ExtractEmailSignals lower-cases and splits an email address.
// IsDisposable and HasValidMX are filled in later from the email validator
// result; extraction itself performs no lookups.
func ExtractEmailSignals(email string) EmailSignals {
	normalized := strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(normalized, "@")
	if at <= 0 || at == len(normalized)-1 {
		// Malformed: keep what we have, leave the parts empty.
		return EmailSignals{Address: normalized}
	}

	return EmailSignals{
		Address:   normalized,
		LocalPart: normalized[:at],
		Domain:    normalized[at+1:],
	}
}
