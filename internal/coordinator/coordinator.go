// Package coordinator multiplexes stateless HTTP requests onto long-lived
// protocol sessions. It resolves each request to a live local Entry by
// checking the in-process cache first, then the distributed store, and
// creates a new session on a full miss after a rate-limit check. The
// distributed store is the cross-process source of truth for identity and
// security metadata; live protocol state exists only locally.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"searchmcp/internal/apikey"
	"searchmcp/internal/logging"
	"searchmcp/internal/mcptools"
	"searchmcp/internal/metrics"
	"searchmcp/internal/session"
)

// ClientFactory builds an upstream client bound to one API key.
type ClientFactory func(apiKey string) mcptools.Client

// Config holds coordinator configuration.
type Config struct {
	// ServerName and ServerVersion identify the MCP server to clients.
	ServerName    string
	ServerVersion string
	// DefaultCollection is the fallback search scope when discovery yields
	// nothing.
	DefaultCollection string
	// DiscoveryTimeout bounds the upstream collection-discovery call made
	// during session construction.
	DiscoveryTimeout time.Duration
	// TouchInterval throttles persisted last-accessed updates.
	TouchInterval time.Duration
}

// Coordinator owns the local session cache and drives the per-request
// session state machine. Requests for the same session id are serialized;
// different ids proceed fully in parallel.
type Coordinator struct {
	store   session.Store
	clients ClientFactory
	cfg     Config
	logger  *slog.Logger
	metrics metrics.Metrics

	locks *keyedMutex

	mu      sync.RWMutex
	entries map[string]*Entry
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New creates a Coordinator over the given store and upstream client factory.
func New(store session.Store, clients ClientFactory, cfg Config, opts ...Option) *Coordinator {
	if cfg.ServerName == "" {
		cfg.ServerName = "searchmcp"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	if cfg.DefaultCollection == "" {
		cfg.DefaultCollection = "default"
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = 10 * time.Second
	}
	if cfg.TouchInterval < 0 {
		cfg.TouchInterval = 0
	}

	c := &Coordinator{
		store:   store,
		clients: clients,
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: metrics.NewNoop(),
		locks:   newKeyedMutex(),
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveParams describes one inbound request.
type ResolveParams struct {
	SessionID string
	APIKey    string
	ClientIP  string
	UserAgent string
}

// Resolve returns a usable Entry for the request, walking the three states:
// local-cache hit, distributed-record rehydration, brand-new session.
func (c *Coordinator) Resolve(ctx context.Context, p ResolveParams) (*Entry, error) {
	if p.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if p.SessionID == "" {
		return nil, session.ErrMissingSessionID
	}

	unlock := c.locks.lock(p.SessionID)
	defer unlock()

	if e, ok := c.lookup(p.SessionID); ok {
		return c.resolveLocal(ctx, e, p)
	}

	rec, err := c.store.Get(ctx, p.SessionID)
	switch {
	case err == nil:
		return c.rehydrate(ctx, rec, p)
	case errors.Is(err, session.ErrNotFound):
		return c.createNew(ctx, p)
	default:
		return nil, errors.Join(ErrStoreDegraded, err)
	}
}

// resolveLocal handles a local-cache hit: validate the presented key against
// the stored hash, then the client binding, then touch and serve.
func (c *Coordinator) resolveLocal(ctx context.Context, e *Entry, p ResolveParams) (*Entry, error) {
	rec := e.Record()

	if !apikey.Verify(p.APIKey, rec.APIKeyHash) {
		// Credential rotation: the old transport and tool registry belong
		// to the previous key and must not survive.
		c.logger.InfoContext(ctx, "api key rotation detected, rebuilding session",
			logging.SessionID(p.SessionID),
			logging.KeyFingerprint(apikey.Fingerprint(p.APIKey)))

		c.dropEntry(p.SessionID)
		e.Close()

		entry, err := c.mint(ctx, p, false)
		if err != nil {
			return nil, err
		}
		c.metrics.ObserveSessionRotated()
		return entry, nil
	}

	if err := c.checkBinding(ctx, rec, p); err != nil {
		return nil, err
	}

	c.touch(ctx, rec)
	return e, nil
}

// rehydrate rebuilds a local entry from a record found in the distributed
// store, re-validating key and binding against the latest fetched record.
func (c *Coordinator) rehydrate(ctx context.Context, rec *session.Record, p ResolveParams) (*Entry, error) {
	if !apikey.Verify(p.APIKey, rec.APIKeyHash) {
		c.logger.InfoContext(ctx, "api key rotation detected during rehydration",
			logging.SessionID(p.SessionID),
			logging.KeyFingerprint(apikey.Fingerprint(p.APIKey)))

		entry, err := c.mint(ctx, p, false)
		if err != nil {
			return nil, err
		}
		c.metrics.ObserveSessionRotated()
		return entry, nil
	}

	if err := c.checkBinding(ctx, rec, p); err != nil {
		return nil, err
	}

	rec.Touch()
	if err := c.store.Set(ctx, rec, false); err != nil {
		c.logger.WarnContext(ctx, "failed to refresh session record",
			logging.SessionID(rec.SessionID), logging.Error(err))
	}

	entry, err := c.buildEntry(ctx, rec, c.clients(p.APIKey), true)
	if err != nil {
		return nil, err
	}
	c.insert(entry)
	c.metrics.ObserveSessionRehydrated()

	c.logger.InfoContext(ctx, "session rehydrated from distributed store",
		logging.SessionID(rec.SessionID))
	return entry, nil
}

// createNew handles a full miss: rate-limit check first, then record
// creation, persistence, and entry construction.
func (c *Coordinator) createNew(ctx context.Context, p ResolveParams) (*Entry, error) {
	rl, err := c.store.CheckRateLimit(ctx, p.APIKey)
	if err != nil {
		// Fail closed: without the shared counter the ceiling cannot be
		// enforced authoritatively.
		return nil, errors.Join(ErrStoreDegraded, err)
	}
	if !rl.Allowed {
		c.metrics.ObserveRateLimitRejected()
		c.logger.WarnContext(ctx, "session creation rate limit exceeded",
			logging.KeyFingerprint(apikey.Fingerprint(p.APIKey)),
			slog.Int64("count", rl.Count), slog.Int64("limit", rl.Limit))
		return nil, &RateLimitError{Result: rl}
	}

	entry, err := c.mint(ctx, p, true)
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveSessionCreated()
	return entry, nil
}

// mint persists a fresh record for p's session id and constructs its local
// entry. isNew distinguishes first creation from a rotation rebuild.
func (c *Coordinator) mint(ctx context.Context, p ResolveParams, isNew bool) (*Entry, error) {
	client := c.clients(p.APIKey)

	rec, err := session.NewRecord(session.NewRecordParams{
		SessionID:     p.SessionID,
		APIKey:        p.APIKey,
		CollectionRef: c.cfg.DefaultCollection,
		BaseURL:       client.BaseURL(),
		ClientIP:      p.ClientIP,
		UserAgent:     p.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, rec, isNew); err != nil {
		return nil, errors.Join(ErrStoreDegraded, err)
	}

	entry, err := c.buildEntry(ctx, rec, client, p.APIKey != "")
	if err != nil {
		return nil, err
	}
	c.insert(entry)
	return entry, nil
}

// buildEntry discovers the key's collections and assembles the session's MCP
// server and transport. Discovery failure degrades to the default collection
// so the session is never toolless.
func (c *Coordinator) buildEntry(ctx context.Context, rec *session.Record, client mcptools.Client, keyPresent bool) (*Entry, error) {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.DiscoveryTimeout)
	defer cancel()

	collections, err := client.ListCollections(dctx)
	if err != nil {
		c.logger.WarnContext(ctx, "collection discovery failed, using default collection",
			logging.SessionID(rec.SessionID), logging.Error(err))
		collections = nil
	}

	caps := mcptools.Build(c.cfg.DefaultCollection, collections)

	srv := mcpserver.NewMCPServer(c.cfg.ServerName, c.cfg.ServerVersion,
		mcpserver.WithToolCapabilities(true))
	mcptools.Register(srv, caps, client, mcptools.Meta{
		BaseURL:           client.BaseURL(),
		DefaultCollection: c.cfg.DefaultCollection,
		KeyPresent:        keyPresent,
	})

	// Session identity lives in this coordinator, so the inner transport
	// runs stateless.
	transport := mcpserver.NewStreamableHTTPServer(srv, mcpserver.WithStateLess(true))

	names := make([]string, 0, len(caps))
	for _, capability := range caps {
		names = append(names, capability.ToolName())
	}
	return newEntry(rec, transport, names), nil
}

// checkBinding rejects requests whose client identity no longer matches the
// binding captured at creation. The record stays untouched for the
// legitimate holder.
func (c *Coordinator) checkBinding(ctx context.Context, rec *session.Record, p ResolveParams) error {
	if rec.ClientIP != "" && p.ClientIP != "" && rec.ClientIP != p.ClientIP {
		c.metrics.ObserveHijackRejected()
		c.logger.WarnContext(ctx, "session binding mismatch",
			logging.SessionID(rec.SessionID), logging.ClientIP(p.ClientIP))
		return ErrHijackDetected
	}
	return nil
}

// touch refreshes the record's last-accessed timestamp, persisting at most
// once per TouchInterval to limit store writes. Persistence is best effort.
func (c *Coordinator) touch(ctx context.Context, rec *session.Record) {
	if time.Since(rec.LastAccessed()) < c.cfg.TouchInterval {
		return
	}
	rec.Touch()
	if err := c.store.Set(ctx, rec, false); err != nil {
		c.logger.WarnContext(ctx, "failed to refresh session record",
			logging.SessionID(rec.SessionID), logging.Error(err))
	}
}

// Terminate closes and removes the local entry if present and deletes the
// distributed record, so no process can resume the session. Terminating an
// unknown session succeeds.
func (c *Coordinator) Terminate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return session.ErrMissingSessionID
	}

	unlock := c.locks.lock(sessionID)
	defer unlock()

	if e := c.dropEntry(sessionID); e != nil {
		e.Close()
	}

	if err := c.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}

	c.metrics.ObserveSessionTerminated()
	c.logger.InfoContext(ctx, "session terminated", logging.SessionID(sessionID))
	return nil
}

// ActiveSessions returns the number of live entries cached in this process.
func (c *Coordinator) ActiveSessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StoreConnected reports distributed store liveness for health reporting.
func (c *Coordinator) StoreConnected(ctx context.Context) bool {
	return c.store.IsConnected(ctx)
}

// Shutdown closes every locally cached transport. Distributed records are
// left in place so other processes can resume the sessions.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		e.Close()
		delete(c.entries, id)
	}
	c.metrics.SetActiveSessions(0)
}

func (c *Coordinator) lookup(id string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *Coordinator) insert(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Record().SessionID] = e
	c.metrics.SetActiveSessions(len(c.entries))
}

func (c *Coordinator) dropEntry(id string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	delete(c.entries, id)
	c.metrics.SetActiveSessions(len(c.entries))
	return e
}
