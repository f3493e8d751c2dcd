package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/merchant-engine/internal/stats"
)

// RedisCache implements StatsCache on Redis. Values are JSON and expire
// after ttl; the namespace keeps concurrent sessions apart.
type RedisCache struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewRedisCache creates a cache writing keys under namespace.
func NewRedisCache(rdb *redis.Client, ttl time.Duration, namespace string) *RedisCache {
	return &RedisCache{
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

func (c *RedisCache) Get(ctx context.Context, key Key) (*stats.Stats, bool, error) {
	data, err := c.rdb.Get(ctx, c.statsKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var s stats.Stats
	if err := json.Unmarshal(data, &s); err != nil {
		// Treat undecodable entries as a miss; the next Put overwrites them.
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key Key, s *stats.Stats) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := c.rdb.Set(ctx, c.statsKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) statsKey(key Key) string {
	return fmt.Sprintf("merchant:%s:stats:%s", c.namespace, key)
}
