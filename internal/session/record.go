// Package session defines the durable session model and its distributed
// store. A Record holds everything another process needs to resume a
// session: identity, a verifiable credential hash, and the client binding
// captured at creation. Live protocol state is never persisted here.
package session

import (
	"errors"
	"time"

	"searchmcp/internal/apikey"
)

// Record is the cross-process source of truth for a session, persisted in
// the distributed store. The plaintext API key never appears in a Record;
// only its salted one-way hash does.
type Record struct {
	SessionID     string `json:"session_id"`
	APIKeyHash    string `json:"api_key_hash"`
	CollectionRef string `json:"collection_ref"`
	BaseURL       string `json:"base_url"`

	// Epoch milliseconds.
	CreatedAt      int64 `json:"created_at"`
	LastAccessedAt int64 `json:"last_accessed_at"`

	// Binding metadata captured at creation, used to detect hijacking.
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`
}

// NewRecordParams contains parameters for creating a new session record.
type NewRecordParams struct {
	SessionID     string
	APIKey        string
	CollectionRef string
	BaseURL       string
	ClientIP      string
	UserAgent     string
}

// NewRecord creates a session record with a freshly salted hash of the
// presented API key and both timestamps set to now.
func NewRecord(params NewRecordParams) (*Record, error) {
	if params.SessionID == "" {
		return nil, ErrMissingSessionID
	}

	hash, err := apikey.Hash(params.APIKey)
	if err != nil {
		return nil, errors.Join(ErrHashAPIKey, err)
	}

	now := time.Now().UnixMilli()
	return &Record{
		SessionID:      params.SessionID,
		APIKeyHash:     hash,
		CollectionRef:  params.CollectionRef,
		BaseURL:        params.BaseURL,
		CreatedAt:      now,
		LastAccessedAt: now,
		ClientIP:       params.ClientIP,
		UserAgent:      params.UserAgent,
	}, nil
}

// Touch updates the last-accessed timestamp.
func (r *Record) Touch() {
	r.LastAccessedAt = time.Now().UnixMilli()
}

// LastAccessed returns the last-accessed timestamp as a time.Time.
func (r *Record) LastAccessed() time.Time {
	return time.UnixMilli(r.LastAccessedAt)
}
