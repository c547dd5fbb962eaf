package settings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
)

// KV is the minimal cache the resolver needs in front of the settings
// store. cache.Client satisfies it; tests pass nil to skip caching.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Resolver layers runtime overrides from the settings store over
// compiled-in defaults: resolve(key) -> override ?? default. Lookups
// never fail; a broken store or malformed override falls back.
type Resolver struct {
	store domain.SettingsRepository
	cache KV
	ttl   time.Duration
	log   logger.Logger
}

// New creates a resolver. store and cache may be nil, in which case
// every lookup falls through to the compiled default.
func New(store domain.SettingsRepository, cache KV, ttl time.Duration, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{store: store, cache: cache, ttl: ttl, log: log}
}

// Resolve returns the raw override for key and true, or "" and false
// when no override exists or the store is unavailable.
func (r *Resolver) Resolve(ctx context.Context, key string) (string, bool) {
	if r.store == nil {
		return "", false
	}

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, "settings:"+key); err == nil {
			return cached, true
		}
	}

	value, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.Warn("settings lookup failed, using default", "key", key, "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, "settings:"+key, value, r.ttl); err != nil {
			r.log.Warn("settings cache write failed", "key", key, "error", err)
		}
	}
	return value, true
}

// ResolveJSON decodes the override for key into out and reports
// whether an override was applied. A malformed override is logged and
// treated as absent so callers keep their compiled defaults.
func (r *Resolver) ResolveJSON(ctx context.Context, key string, out any) bool {
	raw, ok := r.Resolve(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		r.log.Warn("malformed settings override, using default", "key", key, "error", err)
		return false
	}
	return true
}
