package fx

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bitlabstudio/account-keeping/internal/platform/cache"
)

func newCachedHistory(t *testing.T, next History) (*CachedHistory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedHistory(next, cache.NewVersioned(client, "fx", time.Hour)), mr
}

func TestCachedHistoryServesRepeatLookupsFromRedis(t *testing.T) {
	history := &fakeHistory{}
	history.add("USD", "EUR", day(2024, time.March, 4), "0.93")
	cached, _ := newCachedHistory(t, history)
	ctx := context.Background()
	pair := NewPair("USD", "EUR")

	for i := 0; i < 3; i++ {
		rate, ok, err := cached.RateInMonth(ctx, pair, day(2024, time.March, 20))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "0.93", rate.Value.String())
	}
	require.Equal(t, 1, history.callCount())

	// Misses are cached as well.
	for i := 0; i < 2; i++ {
		_, ok, err := cached.LatestRate(ctx, NewPair("CHF", "EUR"), day(2024, time.March, 1))
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.Equal(t, 2, history.callCount())
}

func TestCachedHistoryInvalidate(t *testing.T) {
	history := &fakeHistory{}
	cached, _ := newCachedHistory(t, history)
	ctx := context.Background()
	pair := NewPair("USD", "EUR")

	_, ok, err := cached.LatestRate(ctx, pair, time.Time{})
	require.NoError(t, err)
	require.False(t, ok)

	history.add("USD", "EUR", day(2024, time.March, 4), "0.93")
	require.NoError(t, cached.Invalidate(ctx))

	rate, ok, err := cached.LatestRate(ctx, pair, time.Time{})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0.93", rate.Value.String())
}

func TestCachedHistoryFallsBackWhenRedisIsDown(t *testing.T) {
	history := &fakeHistory{}
	history.add("USD", "EUR", day(2024, time.March, 4), "0.93")
	cached, mr := newCachedHistory(t, history)
	mr.Close()

	r, err := NewResolver("EUR", cached)
	require.NoError(t, err)
	rate, err := r.Resolve(context.Background(), "USD", day(2024, time.March, 1))
	require.NoError(t, err)
	require.Equal(t, "0.93", rate.String())
}
