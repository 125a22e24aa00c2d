package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrecap/pkg/config"
	"xrecap/pkg/socialdata"
)

func testCache(threshold int) (*Cache, *MemoryStore) {
	store := NewMemoryStore()
	cfg := &config.CacheConfig{
		TTL:                      8 * time.Hour,
		LargeCollectionThreshold: threshold,
	}
	return New(store, cfg, nil), store
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "profile:jack", ProfileKey("Jack"))
	assert.Equal(t, "records:jack", RecordsKey("JACK"))
	assert.Equal(t, "stats:jack:2024", StatsKey("Jack", 2024))
}

func TestProfileRoundTrip(t *testing.T) {
	c, _ := testCache(1000)
	ctx := context.Background()

	assert.Nil(t, c.GetProfile(ctx, "jack"))

	c.SetProfile(ctx, "Jack", &socialdata.Profile{IDStr: "12", ScreenName: "jack"})

	got := c.GetProfile(ctx, "JACK")
	require.NotNil(t, got)
	assert.Equal(t, "12", got.IDStr)
}

func TestRecordsRoundTrip(t *testing.T) {
	c, _ := testCache(1000)
	ctx := context.Background()

	records := socialdata.NewCollection()
	records.Add(socialdata.Tweet{IDStr: "1"}, socialdata.Tweet{IDStr: "2"})
	c.SetRecords(ctx, "jack", records)

	got := c.GetRecords(ctx, "jack")
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Len())
	assert.True(t, got.Has("1"))

	c.DeleteRecords(ctx, "jack")
	assert.Nil(t, c.GetRecords(ctx, "jack"))
}

func TestLargeCollectionGetsDoubledTTL(t *testing.T) {
	c, store := testCache(2)
	ctx := context.Background()

	base := time.Unix(5000, 0)
	store.now = func() time.Time { return base }

	small := socialdata.NewCollection()
	small.Add(socialdata.Tweet{IDStr: "1"})
	c.SetRecords(ctx, "small", small)

	large := socialdata.NewCollection()
	large.Add(socialdata.Tweet{IDStr: "1"}, socialdata.Tweet{IDStr: "2"}, socialdata.Tweet{IDStr: "3"})
	c.SetRecords(ctx, "large", large)

	// Past the base TTL the small collection is gone but the large one,
	// written with double TTL, survives.
	store.now = func() time.Time { return base.Add(9 * time.Hour) }
	assert.Nil(t, c.GetRecords(ctx, "small"))
	assert.NotNil(t, c.GetRecords(ctx, "large"))

	store.now = func() time.Time { return base.Add(17 * time.Hour) }
	assert.Nil(t, c.GetRecords(ctx, "large"))
}

func TestCorruptPayloadIsAMiss(t *testing.T) {
	c, store := testCache(1000)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ProfileKey("jack"), []byte("{not json"), time.Hour))
	assert.Nil(t, c.GetProfile(ctx, "jack"))

	// The corrupt entry is evicted so later reads short-circuit.
	_, ok, err := store.Get(ctx, ProfileKey("jack"))
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("store down") }
func (failingStore) Close() error                         { return nil }

func TestStoreFailuresDegradeToMisses(t *testing.T) {
	cfg := &config.CacheConfig{TTL: time.Hour, LargeCollectionThreshold: 10}
	c := New(failingStore{}, cfg, nil)
	ctx := context.Background()

	assert.Nil(t, c.GetProfile(ctx, "jack"))
	c.SetProfile(ctx, "jack", &socialdata.Profile{IDStr: "1"})
	c.DeleteRecords(ctx, "jack")
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	assert.Nil(t, c.GetProfile(ctx, "jack"))
	c.SetProfile(ctx, "jack", &socialdata.Profile{IDStr: "1"})
	c.DeleteRecords(ctx, "jack")
}
