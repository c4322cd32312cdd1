package session

import "errors"

var (
	// ErrNotFound is returned when a session record does not exist.
	ErrNotFound = errors.New("session record not found")
	// ErrStoreUnavailable is returned when the distributed store cannot be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt session record")
	// ErrMissingSessionID is returned when creating a record without an id.
	ErrMissingSessionID = errors.New("session id is required")
	// ErrHashAPIKey is returned when hashing the API key fails.
	ErrHashAPIKey = errors.New("failed to hash api key")
	// ErrSaveRecord is returned when persisting a record fails.
	ErrSaveRecord = errors.New("failed to save session record")
	// ErrDeleteRecord is returned when deleting a record fails.
	ErrDeleteRecord = errors.New("failed to delete session record")
	// ErrRateLimitCheck is returned when the rate-limit counter cannot be updated.
	ErrRateLimitCheck = errors.New("failed to check session rate limit")
)
