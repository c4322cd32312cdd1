// Package httpapi adapts the transport-agnostic session coordinator to HTTP.
// It owns credential extraction, session-id negotiation, the stable JSON-RPC
// error surface, and the operational endpoints (health, metadata, metrics).
package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"searchmcp/internal/clientip"
	"searchmcp/internal/coordinator"
	"searchmcp/internal/logging"
	"searchmcp/internal/metrics"
)

// Handler serves the protocol endpoint and operational routes.
type Handler struct {
	coord   *coordinator.Coordinator
	logger  *slog.Logger
	metrics metrics.Metrics

	serverName    string
	serverVersion string
	startedAt     time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Metrics) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithServerInfo sets the name and version reported by the metadata endpoint.
func WithServerInfo(name, version string) Option {
	return func(h *Handler) {
		if name != "" {
			h.serverName = name
		}
		if version != "" {
			h.serverVersion = version
		}
	}
}

// New creates a Handler over the coordinator.
func New(coord *coordinator.Coordinator, opts ...Option) *Handler {
	h := &Handler{
		coord:         coord,
		logger:        slog.Default(),
		metrics:       metrics.NewNoop(),
		serverName:    "searchmcp",
		serverVersion: "dev",
		startedAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the full route table as an http.Handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", h.handleMCP)
	mux.HandleFunc("DELETE /mcp", h.handleTerminate)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleMeta)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.metrics.GetRegistry(), promhttp.HandlerOpts{}))
	return mux
}

// handleMCP resolves the request to a live session and hands it to that
// session's protocol transport. The response always carries the session id so
// clients without one learn the id the server minted.
func (h *Handler) handleMCP(w http.ResponseWriter, r *http.Request) {
	h.metrics.IncrementHTTPRequests()
	start := time.Now()

	apiKey := extractAPIKey(r)
	if apiKey == "" {
		h.metrics.IncrementHTTPErrors()
		writeRPCError(w, http.StatusUnauthorized, CodeAuthRequired,
			"Authentication required: provide an API key via the X-API-Key header, a bearer token, or the apiKey query parameter")
		return
	}

	sessionID := extractSessionID(r)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ip := clientip.GetIP(r)

	entry, err := h.coord.Resolve(r.Context(), coordinator.ResolveParams{
		SessionID: sessionID,
		APIKey:    apiKey,
		ClientIP:  ip,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeResolveError(w, r, err, sessionID, ip)
		return
	}

	// Session identity is negotiated here, not by the inner transport: the
	// inbound header is stripped so the stateless transport never sees it,
	// and the authoritative id rides back on the response.
	r.Header.Del(sessionHeader)
	w.Header().Set(sessionHeader, sessionID)

	entry.Dispatch(w, r)

	h.logger.DebugContext(r.Context(), "protocol request dispatched",
		logging.SessionID(sessionID),
		logging.Duration(time.Since(start)))
}

// writeResolveError maps coordinator failures onto the stable JSON-RPC error
// surface. Internal detail is logged, never returned to the client.
func (h *Handler) writeResolveError(w http.ResponseWriter, r *http.Request, err error, sessionID, ip string) {
	h.metrics.IncrementHTTPErrors()

	var rlErr *coordinator.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		retryAfter := int(math.Ceil(rlErr.Result.RetryAfter().Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		writeRPCError(w, http.StatusTooManyRequests, CodeRateLimited,
			fmt.Sprintf("Session creation rate limit exceeded. Retry after %d seconds.", retryAfter))

	case errors.Is(err, coordinator.ErrHijackDetected):
		writeRPCError(w, http.StatusForbidden, CodeHijackDetected,
			"Session binding mismatch: this session belongs to a different client")

	case errors.Is(err, coordinator.ErrMissingAPIKey):
		writeRPCError(w, http.StatusUnauthorized, CodeAuthRequired,
			"Authentication required: provide an API key")

	default:
		h.logger.ErrorContext(r.Context(), "session resolution failed",
			logging.SessionID(sessionID),
			logging.ClientIP(ip),
			logging.Error(err))
		writeRPCError(w, http.StatusInternalServerError, CodeInternalError,
			"Internal server error")
	}
}

// handleTerminate ends a session everywhere. Terminating an unknown session
// still acknowledges success, so retries and double-deletes are harmless.
func (h *Handler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	h.metrics.IncrementHTTPRequests()

	sessionID := extractSessionID(r)
	if sessionID == "" {
		h.metrics.IncrementHTTPErrors()
		writeRPCError(w, http.StatusBadRequest, CodeInvalidRequest,
			"Mcp-Session-Id header is required")
		return
	}

	if err := h.coord.Terminate(r.Context(), sessionID); err != nil {
		h.metrics.IncrementHTTPErrors()
		h.logger.ErrorContext(r.Context(), "session termination failed",
			logging.SessionID(sessionID), logging.Error(err))
		writeRPCError(w, http.StatusInternalServerError, CodeInternalError,
			"Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "terminated",
		"session_id": sessionID,
	})
}

// handleHealth reports liveness plus store connectivity. A degraded store
// still answers 200 so orchestrators do not restart a process that can serve
// existing local sessions.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	redisStatus := "connected"
	if !h.coord.StoreConnected(r.Context()) {
		status = "degraded"
		redisStatus = "disconnected"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"redis":           redisStatus,
		"active_sessions": h.coord.ActiveSessions(),
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
	})
}

// handleMeta serves unauthenticated service discovery at the root.
func (h *Handler) handleMeta(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      h.serverName,
		"version":   h.serverVersion,
		"transport": "streamable-http",
		"endpoints": map[string]string{
			"mcp":     "/mcp",
			"health":  "/health",
			"metrics": "/metrics",
		},
		"authentication": []string{
			"X-API-Key header",
			"Authorization: Bearer token",
			"apiKey query parameter",
		},
	})
}
