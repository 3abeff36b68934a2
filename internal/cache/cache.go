// Package cache stores read projections. Redis is used when reachable; the
// in-process go-cache store takes over otherwise. Invalidation bumps a version
// counter that is part of every data key, so stale entries are never read.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultTTL = 24 * time.Hour

type Cache struct {
	rdb   *redis.Client
	local *gocache.Cache
	log   zerolog.Logger
}

// Connect pings addr and falls back to the local store when redis is not available.
func Connect(ctx context.Context, addr string, log zerolog.Logger) *Cache {
	if addr == "" {
		log.Info().Msg("redis address empty, using in-process cache")
		return NewLocal(log)
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis not available, using in-process cache")
		_ = rdb.Close()
		return NewLocal(log)
	}
	log.Info().Str("addr", addr).Msg("redis connected")
	return New(rdb, log)
}

func New(rdb *redis.Client, log zerolog.Logger) *Cache {
	return &Cache{rdb: rdb, log: log}
}

func NewLocal(log zerolog.Logger) *Cache {
	return &Cache{local: gocache.New(defaultTTL, 10*time.Minute), log: log}
}

// PublicationVersionKey is the invalidation counter of one publication.
func PublicationVersionKey(publicationID uint64) string {
	return fmt.Sprintf("pub:%d:version", publicationID)
}

func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if c == nil {
		return 0
	}
	if c.rdb != nil {
		v, err := c.rdb.Get(ctx, key).Int64()
		if err != nil && err != redis.Nil {
			c.log.Debug().Err(err).Str("key", key).Msg("cache version read failed")
		}
		return v
	}
	if v, ok := c.local.Get(key); ok {
		return v.(int64)
	}
	return 0
}

func (c *Cache) IncrementVersion(ctx context.Context, key string) {
	if c == nil {
		return
	}
	if c.rdb != nil {
		if err := c.rdb.Incr(ctx, key).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
		}
		return
	}
	if err := c.local.Increment(key, 1); err != nil {
		c.local.Set(key, int64(1), gocache.NoExpiration)
	}
}

// Get decodes the value at key into dst and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	var raw []byte
	if c.rdb != nil {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		raw = b
	} else {
		v, ok := c.local.Get(key)
		if !ok {
			return false, nil
		}
		raw = v.([]byte)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.rdb != nil {
		return c.rdb.Set(ctx, key, raw, ttl).Err()
	}
	c.local.Set(key, raw, ttl)
	return nil
}
