package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestAside_FetchesOnceThenServesFromRedis(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			*dest = payload{Name: "crabs", Count: 3}
			return nil
		}
	}

	var first payload
	require.NoError(t, Aside(ctx, TrendingKey(5), &first, time.Minute, fetch(&first)))
	assert.Equal(t, payload{Name: "crabs", Count: 3}, first)
	assert.True(t, mr.Exists(TrendingKey(5)))

	var second payload
	require.NoError(t, Aside(ctx, TrendingKey(5), &second, time.Minute, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	var third payload
	require.NoError(t, Aside(ctx, TrendingKey(5), &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_WithoutRedisCallsFetch(t *testing.T) {
	SetClient(nil)
	var dest payload
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error {
		dest.Name = "direct"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", dest.Name)
}

func TestAside_PropagatesFetchError(t *testing.T) {
	withMiniredis(t)
	boom := errors.New("boom")
	var dest payload
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRevoke(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	revoked, err := IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, Revoke(ctx, "abc", time.Hour))
	revoked, err = IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)
}
