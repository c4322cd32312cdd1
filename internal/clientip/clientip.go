// Package clientip extracts real client IP addresses from HTTP requests.
//
// Proxy headers are checked in priority order so the most reliable sources
// win: CF-Connecting-IP, DO-Connecting-IP, X-Forwarded-For, X-Real-IP, then
// the connection's RemoteAddr. The extracted IP feeds session binding checks
// and security logging, so validation matters more than speed here.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

var headerPriority = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP returns the client IP for the request. It never panics; when no
// header yields a valid address it falls back to the host part of
// RemoteAddr, and to the raw RemoteAddr as a last resort.
func GetIP(r *http.Request) string {
	for _, header := range headerPriority {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}

		// X-Forwarded-For may hold "client, proxy1, proxy2"; the leftmost
		// entry is the original client.
		if header == "X-Forwarded-For" {
			if idx := strings.IndexByte(value, ','); idx >= 0 {
				value = value[:idx]
			}
		}

		if ip := normalize(value); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if ip := normalize(host); ip != "" {
			return ip
		}
	}
	if ip := normalize(r.RemoteAddr); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// normalize validates and canonicalizes an IP string. The unspecified
// addresses (0.0.0.0, ::) are rejected because they never identify a client.
func normalize(value string) string {
	ip := net.ParseIP(strings.TrimSpace(value))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
