package cache

import (
	"context"
	"sync"
	"time"

	"github.com/CreativeUnicorns/suiteprefs"
)

// DefaultGCInterval is how often expired entries are swept.
const DefaultGCInterval = time.Minute

// item represents a single cache item with a value and an expiration time.
type item struct {
	value      []byte
	expiration time.Time
}

func (it item) expired(now time.Time) bool {
	return !it.expiration.IsZero() && now.After(it.expiration)
}

// MemoryCache implements suiteprefs.Cache using an in-memory store.
type MemoryCache struct {
	mu        sync.RWMutex
	items     map[string]item
	stop      chan struct{} // Channel to signal gc goroutine to stop
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache initializes a new MemoryCache instance.
// It starts a garbage collection goroutine to clean expired items.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithInterval(DefaultGCInterval)
}

// NewMemoryCacheWithInterval is NewMemoryCache with a custom sweep interval.
func NewMemoryCacheWithInterval(interval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]item),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go cache.gc(interval)
	return cache
}

// Get retrieves a copy of the value stored under key.
// A missing or expired key returns suiteprefs.ErrNotFound.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, exists := c.items[key]
	if !exists || it.expired(time.Now()) {
		return nil, suiteprefs.ErrNotFound
	}

	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, nil
}

// Set stores a value in the memory cache with an optional TTL.
// If TTL is greater than zero, the key will expire after the duration.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiration time.Time
	if ttl > 0 {
		expiration = time.Now().Add(ttl)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	c.items[key] = item{
		value:      stored,
		expiration: expiration,
	}

	return nil
}

// Delete removes a key from the memory cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the gc goroutine and clears all items. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]item)
	return nil
}

// gc runs a garbage collection process that periodically removes expired items.
func (c *MemoryCache) gc(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep(time.Now())
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.items {
		if it.expired(now) {
			delete(c.items, key)
		}
	}
}
