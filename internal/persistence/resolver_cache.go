package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"
)

const resolverCachePrefix = "resolver:"

// ResolverCache keeps resolved address sets in Redis. It stores addresses
// only; safety is decided by the caller on every read.
type ResolverCache struct {
	client *redis.Client
	prefix string
}

// NewResolverCache builds a cache on top of r.
func NewResolverCache(r *Redis) *ResolverCache {
	return &ResolverCache{client: r.Client, prefix: resolverCachePrefix}
}

// Get returns the cached addresses for host. A miss is (nil, false, nil).
func (c *ResolverCache) Get(ctx context.Context, host string) ([]netip.Addr, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+host).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("resolver cache get: %w", err)
	}

	var addrs []netip.Addr
	if err := json.Unmarshal(data, &addrs); err != nil {
		return nil, false, fmt.Errorf("resolver cache decode: %w", err)
	}
	return addrs, true, nil
}

// Set stores addrs for host with the given TTL.
func (c *ResolverCache) Set(ctx context.Context, host string, addrs []netip.Addr, ttl time.Duration) error {
	data, err := json.Marshal(addrs)
	if err != nil {
		return fmt.Errorf("resolver cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+host, data, ttl).Err(); err != nil {
		return fmt.Errorf("resolver cache set: %w", err)
	}
	return nil
}
