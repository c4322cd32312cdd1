package session

import "time"

// Config holds session store configuration.
type Config struct {
	// TTL is the idle lifetime of a session record in the distributed
	// store; refreshed on every upsert. Abandoned records expire out of
	// the store without a cleanup sweep.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// TouchInterval is the minimum time between persisted activity
	// updates, throttling store writes on busy sessions.
	TouchInterval time.Duration `env:"SESSION_TOUCH_INTERVAL" envDefault:"5m"`

	// RateLimit is the ceiling of new-session creations per API key per
	// window.
	RateLimit int64 `env:"SESSION_RATE_LIMIT" envDefault:"100"`

	// RateWindow is the fixed rate-limit window.
	RateWindow time.Duration `env:"SESSION_RATE_WINDOW" envDefault:"1h"`

	// KeyPrefix namespaces all store keys.
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"mcp"`
}
