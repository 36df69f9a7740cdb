package validators

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"net"
	"strings"
)

//go:embed disposable_domains.txt
var disposableDomainsRaw string

// DomainValidator checks email domains against a bundled disposable-provider
// list and verifies that the domain can receive mail.
type DomainValidator struct {
	resolver   *net.Resolver
	disposable map[string]struct{}
}

// NewDomainValidator creates an email domain validator using the default
// system resolver and the bundled disposable list.
func NewDomainValidator() *DomainValidator {
	return &DomainValidator{
		resolver:   net.DefaultResolver,
		disposable: loadDisposableDomains(),
	}
}

func loadDisposableDomains() map[string]struct{} {
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(disposableDomainsRaw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	return set
}

// IsDisposable reports whether domain (or a parent of it) is on the
// disposable list.
func (v *DomainValidator) IsDisposable(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	for domain != "" {
		if _, ok := v.disposable[domain]; ok {
			return true
		}
		i := strings.Index(domain, ".")
		if i < 0 {
			break
		}
		domain = domain[i+1:]
	}
	return false
}

// Validate runs the disposable check and an MX lookup. A definitive
// "no mail servers" answer sets HasValidMX false; a resolver timeout keeps
// the optimistic default and reports the error so the caller can record the
// degradation. Domains with no MX records but an address record still count
// as deliverable.
func (v *DomainValidator) Validate(ctx context.Context, domain string) (EmailResult, error) {
	res := EmailResult{
		IsDisposable: v.IsDisposable(domain),
		HasValidMX:   true,
	}
	if domain == "" {
		res.HasValidMX = false
		return res, nil
	}

	mx, err := v.resolver.LookupMX(ctx, domain)
	if err == nil && len(mx) > 0 {
		return res, nil
	}

	var dnsErr *net.DNSError
	if err != nil && errors.As(err, &dnsErr) && !dnsErr.IsNotFound {
		// Timeout or server failure: not a statement about the domain.
		return res, err
	}

	// No MX records. Implicit MX rules let a bare address record receive
	// mail, so check that before rejecting.
	addrs, err := v.resolver.LookupHost(ctx, domain)
	if err == nil && len(addrs) > 0 {
		return res, nil
	}
	if err != nil && errors.As(err, &dnsErr) && !dnsErr.IsNotFound {
		return res, err
	}

	res.HasValidMX = false
	return res, nil
}
