package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores cache entries as JSON envelopes with a native TTL.
type RedisCache struct {
	client    *redis.Client
	namespace string
	now       func() time.Time
}

type redisEnvelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewRedisCache creates a Redis cache backend. Keys are stored under
// namespace, which defaults to "analytics:".
func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	if namespace == "" {
		namespace = "analytics:"
	}
	return &RedisCache{client: client, namespace: namespace, now: time.Now}
}

func (c *RedisCache) key(k string) string {
	return c.namespace + k
}

// Get returns the entry stored under key. A missing key is (nil, nil).
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode cache envelope %s: %w", key, err)
	}
	return &CacheEntry{Key: key, Value: []byte(env.Value), ExpiresAt: env.ExpiresAt}, nil
}

// Upsert writes value under key. Redis expires the key at expiresAt; an
// instant already past removes any stored value instead.
func (c *RedisCache) Upsert(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	ttl := expiresAt.Sub(c.now())
	if ttl <= 0 {
		if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", key, err)
		}
		return nil
	}

	data, err := json.Marshal(redisEnvelope{Value: json.RawMessage(value), ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("encode cache envelope %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix. Keys are gathered
// over a complete SCAN first and deleted afterwards, since deleting during
// the scan can make it skip keys.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	pattern := globEscaper.Replace(c.key(prefix)) + "*"

	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan %s: %w", pattern, err)
	}

	var deleted int64
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := c.client.Unlink(ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis unlink: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

const scanBatch = 100

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
