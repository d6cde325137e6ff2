package jobcard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheFetchJSONPopulatesOnce(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "jobcard", "progress", "1")
	require.NoError(t, err)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return ProgressSummary{JobCardID: 1, Progress: 42}, nil
	}

	var first ProgressSummary
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, 42, first.Progress)

	var second ProgressSummary
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 42, second.Progress)
	require.Equal(t, 1, calls)
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "jobcard", "progress", "1")
	require.NoError(t, err)
	var out ProgressSummary
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return ProgressSummary{Progress: 10}, nil
	}))

	require.NoError(t, cache.Bump(ctx))

	fresh, err := cache.BuildKey(ctx, "jobcard", "progress", "1")
	require.NoError(t, err)
	require.NotEqual(t, key, fresh)

	require.NoError(t, cache.FetchJSON(ctx, fresh, &out, func(context.Context) (any, error) {
		return ProgressSummary{Progress: 55}, nil
	}))
	require.Equal(t, 55, out.Progress)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "jobcard", "progress", "9")
	require.NoError(t, err)

	var out ProgressSummary
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return ProgressSummary{Progress: 7}, nil
	}))
	require.Equal(t, 7, out.Progress)
	require.NoError(t, cache.Bump(ctx))
}
