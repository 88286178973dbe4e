// Package cache provides a small keyed cache used for dynamic-group
// membership lookups, with a Redis backend and an in-memory fallback.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-slice cache with per-key TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}
