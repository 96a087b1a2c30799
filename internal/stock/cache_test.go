package stock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), client
}

func TestCacheBuildKeyFollowsVersion(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "P1", "cardex", "", "open", "2024-03-31")
	require.NoError(t, err)
	require.Equal(t, "stock:P1:cardex::open:2024-03-31:v1", key)

	require.NoError(t, cache.Bump(ctx, "P1"))
	key, err = cache.BuildKey(ctx, "P1", "cardex")
	require.NoError(t, err)
	require.Equal(t, "stock:P1:cardex:v2", key)

	ver, err := cache.Version(ctx, PortfolioScope)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)
}

func TestCacheCardexKeyFollowsPurchases(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.CardexKey(ctx, "P1", "", "open", "2024-03-31")
	require.NoError(t, err)
	require.Equal(t, "stock:P1:cardex::open:2024-03-31:v1:p1", key)

	require.NoError(t, cache.Bump(ctx, ""))
	key, err = cache.CardexKey(ctx, "P1", "", "open", "2024-03-31")
	require.NoError(t, err)
	require.Equal(t, "stock:P1:cardex::open:2024-03-31:v1:p2", key)

	require.NoError(t, cache.Bump(ctx, PurchasesScope))
	ver, err := cache.Version(ctx, PurchasesScope)
	require.NoError(t, err)
	require.Equal(t, int64(3), ver)

	ver, err = cache.Version(ctx, PortfolioScope)
	require.NoError(t, err)
	require.Equal(t, int64(3), ver)
}

func TestCacheBumpStartsAboveFirstRead(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Bump(ctx, "P3"))
	ver, err := cache.Version(ctx, "P3")
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)
}

func TestCacheFetchJSONLoadsOnce(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"stock": 125}, nil
	}

	var first, second map[string]int
	require.NoError(t, cache.FetchJSON(ctx, "stock:k", &first, loader))
	require.NoError(t, cache.FetchJSON(ctx, "stock:k", &second, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, 125, second["stock"])

	require.Error(t, cache.FetchJSON(ctx, "stock:k", &first, nil))
}

func TestCacheListenForChangesBumpsProduct(t *testing.T) {
	cache, client := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := cache.Version(ctx, "P7")
	require.NoError(t, err)
	require.NoError(t, cache.ListenForChanges(ctx, "", nil))
	require.NoError(t, client.Publish(ctx, ChangedChannel, "P7").Err())

	require.Eventually(t, func() bool {
		ver, err := cache.Version(ctx, "P7")
		return err == nil && ver == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "P1", "cardex")
	require.NoError(t, err)
	require.Equal(t, "stock:P1:cardex", key)

	var out []int
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) { return []int{1, 2}, nil }))
	require.Equal(t, []int{1, 2}, out)
	require.NoError(t, cache.Bump(ctx, "P1"))

	key, err = cache.CardexKey(ctx, "P1", "open")
	require.NoError(t, err)
	require.Equal(t, "stock:P1:cardex:open", key)
}
