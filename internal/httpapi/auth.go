package httpapi

import (
	"net/http"
	"strings"
)

const sessionHeader = "Mcp-Session-Id"

// extractAPIKey pulls the API key from the request, checking sources in
// priority order: X-API-Key header, Authorization bearer token, then the
// apiKey/api_key query parameters. Returns "" when no source yields a key.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}

	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		const prefix = "bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			if key := strings.TrimSpace(auth[len(prefix):]); key != "" {
				return key
			}
		}
	}

	query := r.URL.Query()
	for _, name := range []string{"apiKey", "api_key"} {
		if key := strings.TrimSpace(query.Get(name)); key != "" {
			return key
		}
	}

	return ""
}

// extractSessionID returns the session id presented by the client, or "".
func extractSessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(sessionHeader))
}
