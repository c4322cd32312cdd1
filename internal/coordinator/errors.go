package coordinator

import (
	"errors"
	"fmt"

	"searchmcp/internal/session"
)

var (
	// ErrMissingAPIKey is returned when a request carries no credential.
	ErrMissingAPIKey = errors.New("api key is required")
	// ErrHijackDetected is returned when a session is presented from a
	// client that does not match its recorded binding. The session record
	// is left intact for the legitimate holder.
	ErrHijackDetected = errors.New("session binding mismatch detected")
	// ErrRateLimited is the sentinel matched by errors.Is for rate-limit
	// rejections; the concrete error is a *RateLimitError.
	ErrRateLimited = errors.New("session creation rate limit exceeded")
	// ErrStoreDegraded is returned when the distributed store cannot answer
	// and the coordinator refuses to make an unauthoritative decision.
	ErrStoreDegraded = errors.New("session store degraded")
)

// RateLimitError carries the rate-limit outcome so callers can surface
// retry-after guidance.
type RateLimitError struct {
	Result session.RateLimitResult
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("session creation rate limit exceeded: %d of %d in window",
		e.Result.Count, e.Result.Limit)
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
