package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingTaxStore struct {
	settings map[int]*TaxSetting
	calls    int
}

func (s *countingTaxStore) TaxSetting(ctx context.Context, id int) (*TaxSetting, error) {
	s.calls++
	return s.settings[id], nil
}

func newCacheFixture(t *testing.T, store *countingTaxStore) *TaxCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTaxCache(store, client, time.Minute, nil)
}

func TestTaxCacheServesSecondLookupFromRedis(t *testing.T) {
	store := &countingTaxStore{settings: map[int]*TaxSetting{
		1: {ID: 1, Active: true, Payload: json.RawMessage(`{"gst": 18}`)},
	}}
	cache := newCacheFixture(t, store)
	ctx := context.Background()

	first, err := cache.TaxSetting(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := cache.TaxSetting(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)
	require.JSONEq(t, string(first.Payload), string(second.Payload))
	require.Equal(t, 1, store.calls)
}

func TestTaxCacheCachesMisses(t *testing.T) {
	store := &countingTaxStore{settings: map[int]*TaxSetting{}}
	cache := newCacheFixture(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		setting, err := cache.TaxSetting(ctx, 42)
		require.NoError(t, err)
		require.Nil(t, setting)
	}
	require.Equal(t, 1, store.calls)
}

func TestTaxCacheInvalidateForcesReload(t *testing.T) {
	store := &countingTaxStore{settings: map[int]*TaxSetting{
		7: {ID: 7, Active: true, Payload: json.RawMessage(`{"gst": 5}`)},
	}}
	cache := newCacheFixture(t, store)
	ctx := context.Background()

	_, err := cache.TaxSetting(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, 7))

	_, err = cache.TaxSetting(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
}
