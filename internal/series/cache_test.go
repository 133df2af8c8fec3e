package series

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regionwatch/internal/types"
)

func f(v float64) *float64 { return &v }

func sampleSeries(values ...float64) *types.TimeSeries {
	samples := make([]*float64, len(values))
	times := make([]string, len(values))
	for i, v := range values {
		samples[i] = f(v)
		times[i] = fmt.Sprintf("2026-01-01T%02d:00", i%24)
	}
	return &types.TimeSeries{
		Latitude:  22.5,
		Longitude: 88.3,
		Times:     times,
		Values:    map[types.DatasetKind][]*float64{types.DatasetTemperature: samples},
	}
}

// exerciseCache runs the Cache contract against any implementation.
func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()
	require.NoError(t, c.Clear(ctx))

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	first := sampleSeries(1, 2, 3)
	stored, err := c.Put(ctx, "a", first)
	require.NoError(t, err)
	assert.Equal(t, first, stored)

	// Second write for the same key keeps the original.
	stored, err = c.Put(ctx, "a", sampleSeries(9, 9, 9))
	require.NoError(t, err)
	assert.Equal(t, 1.0, *stored.Values[types.DatasetTemperature][0])

	got, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, *got.Values[types.DatasetTemperature][0])

	_, err = c.Put(ctx, "b", sampleSeries(4))
	require.NoError(t, err)
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)

	require.NoError(t, c.Clear(ctx))
	n, err = c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, c.Restore(ctx, entries))
	n, err = c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryCache_Contract(t *testing.T) {
	exerciseCache(t, NewMemoryCache())
}

func TestMemoryCache_ConcurrentPutFirstWins(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*types.TimeSeries, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Put(ctx, "k", sampleSeries(float64(i)))
		}(i)
	}
	wg.Wait()

	winner, ok, _ := c.Get(ctx, "k")
	require.True(t, ok)
	for _, r := range results {
		assert.Same(t, winner, r)
	}
}

func TestMemoryCache_RestoreSkipsNil(t *testing.T) {
	c := NewMemoryCache()
	require.NoError(t, c.Restore(context.Background(), []Entry{{Key: "x"}}))
	n, _ := c.Len(context.Background())
	assert.Equal(t, 0, n)
}

// TestRedisCache_Contract runs against a real redis when REDIS_ADDR is set.
func TestRedisCache_Contract(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	c := NewRedisCache(rdb, "regionwatch-test:"+t.Name()+":", nil)
	require.NoError(t, c.Ping(context.Background()))
	exerciseCache(t, c)
	require.NoError(t, c.Clear(context.Background()))
}

func TestCodec_RoundTrip(t *testing.T) {
	in := sampleSeries(1.5, -2.25, 30)
	in.Values[types.DatasetTemperature][1] = nil

	data, err := EncodeSeries(in)
	require.NoError(t, err)

	out, err := DecodeSeries(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCodec_RejectsGarbage(t *testing.T) {
	_, err := DecodeSeries([]byte("not zstd"))
	assert.Error(t, err)
}
