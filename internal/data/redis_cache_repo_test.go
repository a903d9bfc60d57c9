package data

import (
	"context"
	"testing"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCachePrefix = "socialmonitor:test:"

func TestRedisCacheRepo_Operations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)

	repo := NewRedisCacheRepo(client, testCachePrefix)
	ctx := context.Background()

	t.Run("set and get under prefix", func(t *testing.T) {
		key := "nitter:cooldown:nitter.example"
		ttl := 5 * time.Minute

		require.NoError(t, repo.Set(ctx, key, []byte("1"), ttl))

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), result)

		raw, err := client.Get(ctx, testCachePrefix+key).Result()
		require.NoError(t, err)
		assert.Equal(t, "1", raw)

		actualTTL := client.TTL(ctx, testCachePrefix+key).Val()
		assert.True(t, actualTTL > 0 && actualTTL <= ttl)
	})

	t.Run("get missing key", func(t *testing.T) {
		result, err := repo.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("delete and exists", func(t *testing.T) {
		key := "run:daily:2025-03-14"
		require.NoError(t, repo.Set(ctx, key, []byte("x"), time.Minute))

		exists, err := repo.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)

		deleted, err := repo.Delete(ctx, key)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, key)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("set TTL", func(t *testing.T) {
		key := "ttl"
		require.NoError(t, repo.Set(ctx, key, []byte("v"), time.Minute))

		updated, err := repo.SetTTL(ctx, key, 2*time.Minute)
		require.NoError(t, err)
		assert.True(t, updated)

		actualTTL := client.TTL(ctx, testCachePrefix+key).Val()
		assert.True(t, actualTTL > time.Minute && actualTTL <= 2*time.Minute)

		updated, err = repo.SetTTL(ctx, "missing", time.Minute)
		require.NoError(t, err)
		assert.False(t, updated)
	})

	t.Run("set if not exists", func(t *testing.T) {
		key := "run:weekly:2025-03-14"

		wasSet, err := repo.SetIfNotExists(ctx, key, []byte("first"), time.Minute)
		require.NoError(t, err)
		assert.True(t, wasSet)

		wasSet, err = repo.SetIfNotExists(ctx, key, []byte("second"), time.Minute)
		require.NoError(t, err)
		assert.False(t, wasSet)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), result)
	})

	t.Run("health check", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestCacheRepos_EmptyKey(t *testing.T) {
	ctx := context.Background()
	repos := map[string]interface {
		Set(context.Context, string, []byte, time.Duration) error
		Get(context.Context, string) ([]byte, error)
		Delete(context.Context, string) (bool, error)
		Exists(context.Context, string) (bool, error)
		SetTTL(context.Context, string, time.Duration) (bool, error)
		SetIfNotExists(context.Context, string, []byte, time.Duration) (bool, error)
	}{
		// the key check happens before any round trip, so no client is needed
		"redis":  NewRedisCacheRepo(nil, testCachePrefix),
		"memory": NewMemoryCacheRepo(nil),
	}

	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, repo.Set(ctx, "", []byte("value"), time.Minute), ErrEmptyCacheKey)
			_, err := repo.Get(ctx, "")
			require.ErrorIs(t, err, ErrEmptyCacheKey)
			_, err = repo.Delete(ctx, "")
			require.ErrorIs(t, err, ErrEmptyCacheKey)
			_, err = repo.Exists(ctx, "")
			require.ErrorIs(t, err, ErrEmptyCacheKey)
			_, err = repo.SetTTL(ctx, "", time.Minute)
			require.ErrorIs(t, err, ErrEmptyCacheKey)
			_, err = repo.SetIfNotExists(ctx, "", []byte("value"), time.Minute)
			require.ErrorIs(t, err, ErrEmptyCacheKey)
		})
	}
}
