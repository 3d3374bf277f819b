package internal

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP resolves the calling client address, preferring the first entry
// of the X-Forwarded-For header set by the fronting proxy.
func ClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AllowedClientIP checks whether clientIP falls inside one of the allowed
// networks. Entries may be CIDR prefixes or bare addresses. An empty list
// allows everyone.
func AllowedClientIP(clientIP string, networks []string) bool {
	if len(networks) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	for _, network := range networks {
		if !strings.Contains(network, "/") {
			allowed, err := netip.ParseAddr(network)
			if err == nil && allowed == addr {
				return true
			}
			continue
		}
		prefix, err := netip.ParsePrefix(network)
		if err == nil && prefix.Contains(addr) {
			return true
		}
	}
	return false
}
