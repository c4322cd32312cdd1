package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"searchmcp/internal/apikey"
	"searchmcp/internal/logging"
)

// RedisStore implements Store on a shared Redis instance so any server in a
// horizontally scaled pool can resume any session. Records are stored as
// JSON with a TTL; rate-limit counters use INCR with a window-sized expiry.
type RedisStore struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithLogger sets the logger for store operations.
func WithLogger(logger *slog.Logger) RedisStoreOption {
	return func(s *RedisStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, cfg Config, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) recordKey(id string) string {
	return s.cfg.KeyPrefix + ":session:" + id
}

func (s *RedisStore) rateLimitKey(fingerprint string) string {
	return s.cfg.KeyPrefix + ":ratelimit:" + fingerprint
}

// Get returns the record for id, ErrNotFound when absent.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	return &rec, nil
}

// Set upserts a record and refreshes its TTL.
func (s *RedisStore) Set(ctx context.Context, rec *Record, isNew bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(ErrSaveRecord, err)
	}

	if err := s.client.Set(ctx, s.recordKey(rec.SessionID), data, s.cfg.TTL).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, ErrSaveRecord, err)
	}

	if isNew {
		s.logger.InfoContext(ctx, "session record created",
			logging.SessionID(rec.SessionID), logging.ClientIP(rec.ClientIP))
	} else {
		s.logger.DebugContext(ctx, "session record refreshed",
			logging.SessionID(rec.SessionID))
	}
	return nil
}

// Delete removes a record; deleting an absent record succeeds.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.recordKey(id)).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, ErrDeleteRecord, err)
	}
	return nil
}

// CheckRateLimit atomically increments the per-key counter in the current
// fixed window and compares against the configured ceiling. The Redis key
// is derived from the key's fingerprint, never the plaintext.
func (s *RedisStore) CheckRateLimit(ctx context.Context, apiKey string) (RateLimitResult, error) {
	key := s.rateLimitKey(apikey.Fingerprint(apiKey))

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return RateLimitResult{}, errors.Join(ErrStoreUnavailable, ErrRateLimitCheck, err)
	}

	resetAt := time.Now().Add(s.cfg.RateWindow)
	if count == 1 {
		if err := s.client.Expire(ctx, key, s.cfg.RateWindow).Err(); err != nil {
			return RateLimitResult{}, errors.Join(ErrStoreUnavailable, ErrRateLimitCheck, err)
		}
	} else if ttl, err := s.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		resetAt = time.Now().Add(ttl)
	}

	return RateLimitResult{
		Allowed: count <= s.cfg.RateLimit,
		Count:   count,
		Limit:   s.cfg.RateLimit,
		ResetAt: resetAt,
	}, nil
}

// IsConnected reports whether the store answers a ping.
func (s *RedisStore) IsConnected(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}
