package ports

import (
	"context"
	"time"
)

// Cache is a string key-value store. It persists client state such as the
// session between runs; adapters are backed by SQLite or Redis.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
