package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raffleworks/backend/config"
	"github.com/stretchr/testify/require"
)

func newTestCache() *Cache {
	cfg := config.Default().Cache
	return New(cfg)
}

func Test_cache_SingleFlight(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	var loads int32
	loader := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(50 * time.Millisecond)
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(ctx, "key", TierHot, loader)
			require.NoError(t, err)
			require.Equal(t, "value", v)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func Test_cache_FailedLoadIsNotCached(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		if loads == 1 {
			return nil, errors.New("transient")
		}
		return 42, nil
	}

	_, err := c.GetOrLoad(ctx, "key", TierHot, loader)
	require.Error(t, err)

	v, err := c.GetOrLoad(ctx, "key", TierHot, loader)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 2, loads)
}

func Test_cache_InvalidateForcesReload(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return loads, nil
	}

	v, err := c.GetOrLoad(ctx, "key", TierWarm, loader)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	// Served from the tier, no reload.
	v, err = c.GetOrLoad(ctx, "key", TierWarm, loader)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	c.Invalidate("key")

	v, err = c.GetOrLoad(ctx, "key", TierWarm, loader)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func Test_cache_EntriesExpire(t *testing.T) {
	cfg := config.Default().Cache
	cfg.Hot.TTL = 50 * time.Millisecond
	c := New(cfg)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return loads, nil
	}

	_, err := c.GetOrLoad(ctx, "key", TierHot, loader)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)

	v, err := c.GetOrLoad(ctx, "key", TierHot, loader)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func Test_cache_CapacityBound(t *testing.T) {
	cfg := config.Default().Cache
	cfg.Cold.MaxEntries = 3
	c := New(cfg)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key%d", i)
		_, err := c.GetOrLoad(ctx, key, TierCold, func(ctx context.Context) (any, error) {
			return i, nil
		})
		require.NoError(t, err)
	}

	require.LessOrEqual(t, c.Len(TierCold), 3)
}

func Test_cache_TypedWrapper(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	v, err := GetOrLoad(ctx, c, "typed", TierHot, func(ctx context.Context) (string, error) {
		return "hello", nil
	})
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	// The same key now holds a string; asking for another type must fail
	// instead of returning garbage.
	_, err = GetOrLoad(ctx, c, "typed", TierHot, func(ctx context.Context) (int, error) {
		return 0, nil
	})
	require.Error(t, err)
}
