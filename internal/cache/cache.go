package cache

import (
	"context"
	"time"
)

// Cache is a shared JSON key/value store. Implementations report a miss as
// hit=false with a nil error.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix removes every key starting with prefix and returns how many went.
	DelPrefix(ctx context.Context, prefix string) (int, error)
}
