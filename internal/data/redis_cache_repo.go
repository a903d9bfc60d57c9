package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmptyCacheKey is returned for operations on the empty key.
var ErrEmptyCacheKey = errors.New("cache key cannot be empty")

// minLockTTL is the floor for SetIfNotExists so run markers and Nitter
// cooldowns never become permanent.
const minLockTTL = time.Second

// RedisCacheRepo is the Redis implementation of core.CacheRepository.
// Keys are namespaced with prefix.
type RedisCacheRepo struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCacheRepo wraps client; prefix is prepended to every key.
func NewRedisCacheRepo(client redis.UniversalClient, prefix string) *RedisCacheRepo {
	return &RedisCacheRepo{client: client, prefix: prefix}
}

func (r *RedisCacheRepo) key(k string) (string, error) {
	if k == "" {
		return "", ErrEmptyCacheKey
	}
	return r.prefix + k, nil
}

func (r *RedisCacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k, err := r.key(key)
	if err != nil {
		return err
	}
	if err = r.client.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get returns nil, nil for a missing key.
func (r *RedisCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := r.key(key)
	if err != nil {
		return nil, err
	}
	b, err := r.client.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (r *RedisCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	k, err := r.key(key)
	if err != nil {
		return false, err
	}
	n, err := r.client.Del(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis del %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *RedisCacheRepo) Exists(ctx context.Context, key string) (bool, error) {
	k, err := r.key(key)
	if err != nil {
		return false, err
	}
	n, err := r.client.Exists(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// SetTTL reports false when the key does not exist.
func (r *RedisCacheRepo) SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	k, err := r.key(key)
	if err != nil {
		return false, err
	}
	ok, err := r.client.Expire(ctx, k, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire %s: %w", key, err)
	}
	return ok, nil
}

// SetIfNotExists is a single SET NX with a TTL of at least one second.
func (r *RedisCacheRepo) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	k, err := r.key(key)
	if err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(ctx, k, value, max(ttl, minLockTTL)).Result()
	if err != nil {
		return false, fmt.Errorf("redis set nx %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisCacheRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
