package logging

import (
	"log/slog"
	"time"
)

// Attribute helpers use the empty Attr pattern for nil safety, so callers can
// write log.Info("msg", logging.Error(err)) without explicit nil checks.

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// SessionID creates an attribute for session identifiers.
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", id)
}

// KeyFingerprint creates an attribute for an API key fingerprint.
// Only fingerprints are ever logged, never key material.
func KeyFingerprint(fp string) slog.Attr {
	if fp == "" {
		return slog.Attr{}
	}
	return slog.String("key_fingerprint", fp)
}

// ClientIP creates an attribute for client IP addresses.
func ClientIP(ip string) slog.Attr {
	return slog.String("client_ip", ip)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
