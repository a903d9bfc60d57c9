// Package core defines the ports shared by the job queue, agents and collectors.
package core

import (
	"context"
	"errors"
	"time"
)

// CacheRepository is the small key/value store behind run markers and
// scraper cooldowns. Redis backs it in production, a map in memory mode.
// Get returns nil, nil for a missing or expired key; a zero TTL never expires.
type CacheRepository interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete and SetTTL report whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// SetIfNotExists is atomic and reports whether this call created the key.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Health(ctx context.Context) error
}

// RunGuard marks a named workflow as started for a calendar day so that a
// second trigger on the same day is skipped.
type RunGuard struct {
	cache CacheRepository
	ttl   time.Duration
}

// RunGuardOptions bundles dependencies for NewRunGuard.
type RunGuardOptions struct {
	Cache CacheRepository
	TTL   time.Duration
}

// DefaultRunGuardTTL keeps a marker slightly longer than a day.
const DefaultRunGuardTTL = 26 * time.Hour

// NewRunGuard creates a new RunGuard.
func NewRunGuard(opts RunGuardOptions) (*RunGuard, error) {
	if opts.Cache == nil {
		return nil, errors.New("run guard: cache is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultRunGuardTTL
	}
	return &RunGuard{cache: opts.Cache, ttl: ttl}, nil
}

// TryAcquire returns true when this call is the first for name on day.
func (g *RunGuard) TryAcquire(ctx context.Context, name string, day time.Time) (bool, error) {
	return g.cache.SetIfNotExists(ctx, runGuardKey(name, day), []byte(day.UTC().Format(time.RFC3339)), g.ttl)
}

// Release clears the marker so the workflow can run again on day.
func (g *RunGuard) Release(ctx context.Context, name string, day time.Time) error {
	_, err := g.cache.Delete(ctx, runGuardKey(name, day))
	return err
}

// runGuardKey generates a cache key for a workflow run marker.
func runGuardKey(name string, day time.Time) string {
	return "run:" + name + ":" + day.UTC().Format(time.DateOnly)
}
