package session

import (
	"context"
	"time"
)

// Store defines the persistence contract for session records and
// session-creation rate limiting. All operations may fail with
// ErrStoreUnavailable when the backing store is unreachable; callers decide
// how to degrade.
type Store interface {
	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// Set upserts a record and refreshes its TTL. isNew distinguishes
	// creation from refresh for logging and metrics.
	Set(ctx context.Context, rec *Record, isNew bool) error
	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error
	// CheckRateLimit atomically counts a session-creation attempt for the
	// API key in the current window and reports whether it is allowed.
	CheckRateLimit(ctx context.Context, apiKey string) (RateLimitResult, error)
	// IsConnected reports store liveness for health reporting.
	IsConnected(ctx context.Context) bool
}

// RateLimitResult describes the outcome of a rate-limit check.
type RateLimitResult struct {
	Allowed bool
	Count   int64
	Limit   int64
	ResetAt time.Time
}

// RetryAfter returns how long the caller should wait before retrying.
// Zero when the request was allowed or the window already elapsed.
func (r RateLimitResult) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	d := time.Until(r.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
