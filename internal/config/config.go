// Package config provides type-safe environment variable loading with caching.
// Each configuration type is loaded once and cached for subsequent calls, so
// components can load their own config independently without re-parsing the
// environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu      sync.Mutex
	cache   = make(map[reflect.Type]any)
	envOnce sync.Once
)

// ErrNilConfig is returned when Load receives a nil pointer.
var ErrNilConfig = errors.New("config target cannot be nil")

// Load populates cfg from environment variables using `env` struct tags.
// A .env file in the working directory is loaded once per process before the
// first parse. Each configuration type is parsed only once; subsequent calls
// for the same type return the cached value.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	envOnce.Do(func() {
		// Missing .env is the normal case in production.
		_ = godotenv.Load()
	})

	mu.Lock()
	defer mu.Unlock()

	typ := reflect.TypeOf(*cfg)
	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", typ, err)
	}

	cache[typ] = *cfg
	return nil
}

// MustLoad is like Load but panics on failure. Useful during startup where
// a missing required variable should abort the process.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
