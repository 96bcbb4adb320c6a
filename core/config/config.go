// Package config provides type-safe environment variable loading with
// per-type caching. A .env file is loaded once on first use when present,
// then caarlos0/env parses values into struct fields by `env` tags.
//
// Each configuration type is loaded once per process; subsequent Load calls
// for the same type return the cached value.
package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	mu    sync.Mutex
	cache = make(map[reflect.Type]any)
)

// Load populates cfg from environment variables. cfg must be a non-nil
// pointer to a struct. The result is cached by struct type.
func Load(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: Load expects a non-nil struct pointer, got %T", cfg)
	}

	// Missing .env is not an error; real deployments configure the
	// environment directly.
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	typ := v.Elem().Type()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[typ]; ok {
		v.Elem().Set(reflect.ValueOf(cached))
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", typ, err)
	}

	cache[typ] = v.Elem().Interface()
	return nil
}

// MustLoad is like Load but panics on failure. Intended for application startup.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
