package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCache is an in-memory Cache with TTL support. It is the fallback
// when no Redis endpoint is configured.
type LocalCache struct {
	mu    sync.RWMutex
	items map[string]localItem
}

type localItem struct {
	value     []byte
	expiresAt time.Time
}

// NewLocalCache creates an empty local cache and starts its cleanup loop.
func NewLocalCache() *LocalCache {
	lc := &LocalCache{items: make(map[string]localItem)}
	go lc.cleanupLoop(time.Minute)
	return lc
}

func (lc *LocalCache) Get(ctx context.Context, key string) ([]byte, bool) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	item, ok := lc.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

func (lc *LocalCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.items[key] = localItem{value: value, expiresAt: time.Now().Add(ttl)}
}

func (lc *LocalCache) Delete(ctx context.Context, key string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	delete(lc.items, key)
}

func (lc *LocalCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		lc.mu.Lock()
		for k, item := range lc.items {
			if now.After(item.expiresAt) {
				delete(lc.items, k)
			}
		}
		lc.mu.Unlock()
	}
}
