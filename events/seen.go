package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSeenCache remembers provider event ids that were already applied. It only
// short-circuits replays; the processed_events table stays authoritative.
type RedisSeenCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewRedisSeenCache(rdb *redis.Client, ttl time.Duration) *RedisSeenCache {
	return &RedisSeenCache{rdb: rdb, ttl: ttl}
}

func key(id string) string {
	return "webhook-event:" + id
}

func (c *RedisSeenCache) Seen(ctx context.Context, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisSeenCache) Mark(ctx context.Context, id string) error {
	return c.rdb.Set(ctx, key(id), "1", c.ttl).Err()
}
