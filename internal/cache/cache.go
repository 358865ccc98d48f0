// Package cache is a Redis read-through cache for small catalog lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"webshop/internal/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	KeyCategories = "catalog:categories"
	KeyBrands     = "catalog:brands"
)

// Connect opens a Redis client and verifies it answers PING.
func Connect(ctx context.Context, addr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	logger.OrNop(log).Info("redis connected", "addr", addr)
	return client, nil
}

// Loader produces the value for a key on a cache miss.
type Loader func(ctx context.Context) ([]string, error)

// Catalog caches string lists under fixed keys. A nil client disables caching.
type Catalog struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *logger.Logger
}

func NewCatalog(client *redis.Client, ttl time.Duration, log *logger.Logger) *Catalog {
	return &Catalog{client: client, ttl: ttl, logger: logger.OrNop(log).With("component", "catalog_cache")}
}

// Strings returns the cached list for key, loading and storing it on a miss.
// Redis failures degrade to calling load directly.
func (c *Catalog) Strings(ctx context.Context, key string, load Loader) ([]string, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	if values, ok := c.get(ctx, key); ok {
		return values, nil
	}

	// The shared load outlives any single caller; each caller still stops waiting on its own ctx.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		if values, ok := c.get(loadCtx, key); ok {
			return values, nil
		}
		fresh, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.set(loadCtx, key, fresh)
		return fresh, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

// Invalidate drops the given keys.
func (c *Catalog) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("invalidate failed", "keys", keys, "error", err)
		return err
	}
	return nil
}

func (c *Catalog) get(ctx context.Context, key string) ([]string, bool) {
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		c.logger.Warn("cache decode failed", "key", key, "error", err)
		return nil, false
	}
	return values, true
}

func (c *Catalog) set(ctx context.Context, key string, values []string) {
	if values == nil {
		values = []string{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
