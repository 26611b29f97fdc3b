package imagefetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores successfully fetched images keyed by URL.
type Cache interface {
	Get(ctx context.Context, url string) (Asset, bool, error)
	Set(ctx context.Context, url string, a Asset, ttl time.Duration) error
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (Asset, bool, error)          { return Asset{}, false, nil }
func (NopCache) Set(context.Context, string, Asset, time.Duration) error { return nil }

// RedisCache keeps images in Redis as "<content-type>\x00<bytes>".
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: "proposal:image:",
	}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, url string) (Asset, bool, error) {
	val, err := c.client.Get(ctx, c.key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Asset{}, false, nil
	}
	if err != nil {
		return Asset{}, false, fmt.Errorf("redis get: %w", err)
	}
	i := bytes.IndexByte(val, 0)
	if i < 0 {
		return Asset{}, false, nil
	}
	return Asset{ContentType: string(val[:i]), Data: val[i+1:]}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, url string, a Asset, ttl time.Duration) error {
	val := make([]byte, 0, len(a.ContentType)+1+len(a.Data))
	val = append(val, a.ContentType...)
	val = append(val, 0)
	val = append(val, a.Data...)
	if err := c.client.Set(ctx, c.key(url), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return c.prefix + hex.EncodeToString(sum[:])
}
