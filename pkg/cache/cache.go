package cache

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/pkg/errorx"
	"golang.org/x/sync/singleflight"
)

type Tier int

const (
	TierHot Tier = iota
	TierWarm
	TierCold
)

// Cache is the three-level read cache fronting repository loads. Each tier
// has its own TTL and LRU capacity; whichever bound is hit first evicts.
// Loads are de-duplicated per key, so N concurrent misses run the loader
// exactly once. Pending loads live only in the flight group, never in a
// tier, so eviction cannot drop an unresolved entry.
type Cache struct {
	tiers [3]*expirable.LRU[string, any]
	group singleflight.Group
}

func New(cfg config.CacheConfigs) *Cache {
	c := &Cache{}
	for tier, tc := range map[Tier]config.TierConfigs{
		TierHot:  cfg.Hot,
		TierWarm: cfg.Warm,
		TierCold: cfg.Cold,
	} {
		c.tiers[tier] = expirable.NewLRU[string, any](tc.MaxEntries, nil, tc.TTL)
	}

	return c
}

// GetOrLoad returns the cached value for key, or runs loader under
// single-flight and caches the result in the requested tier. A failed load
// caches nothing, so the key is not poisoned for later callers.
func (c *Cache) GetOrLoad(
	ctx context.Context, key string, tier Tier, loader func(ctx context.Context) (any, error),
) (any, error) {
	if v, ok := c.tiers[tier].Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent winner may have stored the value between our miss
		// and joining the flight.
		if v, ok := c.tiers[tier].Get(key); ok {
			return v, nil
		}

		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		c.tiers[tier].Add(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}

	return v, nil
}

// Invalidate removes key from every tier. Repositories call this after any
// write that could change the key's value; the cache never refreshes itself
// on writes.
func (c *Cache) Invalidate(key string) {
	for _, tier := range c.tiers {
		tier.Remove(key)
	}

	c.group.Forget(key)
}

// Purge drops every entry in every tier.
func (c *Cache) Purge() {
	for _, tier := range c.tiers {
		tier.Purge()
	}
}

func (c *Cache) Len(tier Tier) int {
	return c.tiers[tier].Len()
}

// GetOrLoad is the typed wrapper around Cache.GetOrLoad.
func GetOrLoad[T any](
	ctx context.Context, c *Cache, key string, tier Tier, loader func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	v, err := c.GetOrLoad(ctx, key, tier, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, errorx.New(errorx.Internal, "Cached value for %s has unexpected type %T", key, v)
	}

	return typed, nil
}
