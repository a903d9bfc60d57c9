package data

import (
	"context"
	"sync"
	"time"
)

// MemoryCacheRepo is a process-local CacheRepository used when Redis is not configured.
type MemoryCacheRepo struct {
	mu           sync.Mutex
	entries      map[string]memEntry
	timeProvider TimeProvider
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryCacheRepo creates an empty MemoryCacheRepo.
func NewMemoryCacheRepo(tp TimeProvider) *MemoryCacheRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemoryCacheRepo{entries: map[string]memEntry{}, timeProvider: tp}
}

func (r *MemoryCacheRepo) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return r.timeProvider.Now().Add(ttl)
}

// live returns the entry when present and not expired. Caller holds the lock.
func (r *MemoryCacheRepo) live(key string) (memEntry, bool) {
	e, ok := r.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && !r.timeProvider.Now().Before(e.expiresAt) {
		delete(r.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (r *MemoryCacheRepo) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyCacheKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = memEntry{value: append([]byte(nil), value...), expiresAt: r.expiry(ttl)}
	return nil
}

func (r *MemoryCacheRepo) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyCacheKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

func (r *MemoryCacheRepo) Delete(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyCacheKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live(key); !ok {
		return false, nil
	}
	delete(r.entries, key)
	return true, nil
}

func (r *MemoryCacheRepo) Exists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyCacheKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live(key)
	return ok, nil
}

func (r *MemoryCacheRepo) SetTTL(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyCacheKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.live(key)
	if !ok {
		return false, nil
	}
	e.expiresAt = r.expiry(ttl)
	r.entries[key] = e
	return true, nil
}

func (r *MemoryCacheRepo) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyCacheKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live(key); ok {
		return false, nil
	}
	r.entries[key] = memEntry{value: append([]byte(nil), value...), expiresAt: r.expiry(ttl)}
	return true, nil
}

func (r *MemoryCacheRepo) Health(context.Context) error { return nil }
