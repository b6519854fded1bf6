// Package clientip resolves the originating client IP of an HTTP request,
// looking through common reverse-proxy headers before falling back to the
// connection's remote address.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// GetIP returns the client's IP address from the request.
// Priority order:
//  1. X-Forwarded-For (standard proxy header, first valid IP wins)
//  2. X-Real-IP (nginx reverse proxy)
//  3. RemoteAddr (direct connection fallback)
func GetIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// X-Forwarded-For can contain multiple IPs, find the first valid one
		for ip := range strings.SplitSeq(forwarded, ",") {
			if parsed := parseIP(strings.TrimSpace(ip)); parsed != "" {
				return parsed
			}
		}
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if parsed := parseIP(ip); parsed != "" {
			return parsed
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If SplitHostPort fails, assume it's already just an IP
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// parseIP validates and normalizes an IP address string.
// Returns empty string if the IP is invalid.
func parseIP(ipStr string) string {
	ipStr = strings.TrimSpace(ipStr)
	if ipStr == "" {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	return ip.String()
}
