package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	value    string
	expireAt time.Time // zero means no expiry
}

func (m memoryItem) expired() bool {
	return !m.expireAt.IsZero() && time.Now().After(m.expireAt)
}

// MemoryCache implements Service with in-process storage; used in tests
// and in deployments without Redis.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryItem
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryItem)}
}

var _ Service = (*MemoryCache)(nil)

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return err
		}
		data = string(b)
	}

	item := memoryItem{value: data}
	if expiration > 0 {
		item.expireAt = time.Now().Add(expiration)
	}

	mc.mu.Lock()
	mc.data[key] = item
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest *string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, ok := mc.data[key]
	if !ok || item.expired() {
		if ok {
			delete(mc.data, key)
		}
		return ErrCacheMiss
	}
	*dest = item.value
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	item, ok := mc.data[key]
	return ok && !item.expired(), nil
}

func (mc *MemoryCache) Close() error {
	return nil
}
