package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

// RedisCache stores keys under "<prefix>:<key>".
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

var _ ports.Cache = (*RedisCache)(nil)

func NewRedisCache(opts *redis.Options, prefix string) *RedisCache {
	return &RedisCache{
		rdb:    redis.NewClient(opts),
		prefix: strings.TrimSpace(prefix),
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	value, err := c.rdb.Get(ctx, c.key(trimmedKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errs.WithKind(errs.Wrap(err, "redis get"), errs.KindTransport)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := c.rdb.Set(ctx, c.key(trimmedKey), value, ttl).Err(); err != nil {
		return errs.WithKind(errs.Wrap(err, "redis set"), errs.KindTransport)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.rdb.Del(ctx, c.key(trimmedKey)).Err(); err != nil {
		return errs.WithKind(errs.Wrap(err, "redis del"), errs.KindTransport)
	}
	return nil
}

func (c *RedisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}
