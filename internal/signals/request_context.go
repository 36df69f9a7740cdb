package signals

import (
	"net"
	"net/http"
	"strings"
)

// RequestContext captures the HTTP-level facts of a signup attempt.
// All header and address parsing happens here; nothing downstream of this
// type touches raw HTTP primitives.
type RequestContext struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
}

// NewRequestContext extracts a RequestContext from an incoming request.
// Proxy headers are trusted in the order X-Forwarded-For (leftmost entry),
// X-Real-IP, then the socket address.
func NewRequestContext(r *http.Request) RequestContext {
	return RequestContext{
		IP:             clientIP(r),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		if net.ParseIP(real) != nil {
			return real
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port (tests, some proxies)
		if net.ParseIP(r.RemoteAddr) != nil {
			return r.RemoteAddr
		}
		return ""
	}
	return host
}
