package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portfolio-importer/internal/circuitbreaker"
)

// ReplayRegistry remembers, per platform account, which import first brought
// in a file with a given SHA-256. Calls go through a circuit breaker; while
// it is open every call fails immediately with ErrCircuitOpen.
type ReplayRegistry struct {
	cache   *RedisCache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewReplayRegistry creates a registry whose fingerprints expire after ttl
func NewReplayRegistry(cache *RedisCache, ttl time.Duration) *ReplayRegistry {
	return NewReplayRegistryWithBreaker(cache, ttl, circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("replay-registry")))
}

// NewReplayRegistryWithBreaker creates a registry guarded by the given breaker
func NewReplayRegistryWithBreaker(cache *RedisCache, ttl time.Duration, breaker *circuitbreaker.CircuitBreaker) *ReplayRegistry {
	return &ReplayRegistry{cache: cache, ttl: ttl, breaker: breaker}
}

// Breaker exposes the circuit breaker guarding Redis
func (r *ReplayRegistry) Breaker() *circuitbreaker.CircuitBreaker {
	return r.breaker
}

// fingerprintKey format: import:fingerprint:<account>:<sha256>
func fingerprintKey(platformAccountID, fileSHA256 string) string {
	return fmt.Sprintf("import:fingerprint:%s:%s", platformAccountID, fileSHA256)
}

// Lookup returns the import id registered for the fingerprint, if any
func (r *ReplayRegistry) Lookup(ctx context.Context, platformAccountID, fileSHA256 string) (string, bool, error) {
	var (
		importID string
		found    bool
	)
	err := r.breaker.Execute(ctx, func() error {
		v, err := r.cache.Get(ctx, fingerprintKey(platformAccountID, fileSHA256))
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		importID, found = v, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to look up import fingerprint: %w", err)
	}
	return importID, found, nil
}

// Remember registers importID for the fingerprint. An existing registration is kept.
func (r *ReplayRegistry) Remember(ctx context.Context, platformAccountID, fileSHA256, importID string) error {
	err := r.breaker.Execute(ctx, func() error {
		_, err := r.cache.SetNX(ctx, fingerprintKey(platformAccountID, fileSHA256), importID, r.ttl)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to remember import fingerprint: %w", err)
	}
	return nil
}
