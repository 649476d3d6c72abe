package relay

import "strings"

// Authorized reports whether a connection from origin may use an agent
// restricted to domain. Both inputs are normalized (scheme, port and a
// leading "www." stripped, lowercased) before comparison. A request is
// authorized on exact match or when origin is a proper subdomain of domain.
// localhost and 127.0.0.1 are treated as the same host. Empty input on
// either side is unauthorized.
func Authorized(origin, domain string) bool {
	o := normalizeHost(origin)
	d := normalizeHost(domain)
	if o == "" || d == "" {
		return false
	}
	if isLoopback(o) && isLoopback(d) {
		return true
	}
	return o == d || strings.HasSuffix(o, "."+d)
}

func normalizeHost(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s[i+1:], "]") {
		// strip a trailing :port, but not the colon inside an IPv6 literal
		if isDigits(s[i+1:]) {
			s = s[:i]
		}
	}
	s = strings.TrimPrefix(s, "www.")
	return s
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
