package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/product-catalog/pkg/cache"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a thread-safe in-memory key-value cache with TTLs, call
// counters and per-operation error injection.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time

	// Injected errors per operation.
	GetErr    error
	SetErr    error
	DeleteErr error
	PingErr   error

	// Tracking
	GetCount    int
	SetCount    int
	DeleteCount int
	LastTTL     time.Duration
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// SetErrors configures the injected errors.
func (c *MemoryCache) SetErrors(get, set, del error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetErr, c.SetErr, c.DeleteErr = get, set, del
}

// Put stores a raw value without counting or TTL, e.g. to plant corrupt data.
func (c *MemoryCache) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value}
}

// Has reports whether key holds a live entry.
func (c *MemoryCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lookup(key)
	return ok
}

// Counts returns the get, set and delete call counts.
func (c *MemoryCache) Counts() (gets, sets, deletes int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.GetCount, c.SetCount, c.DeleteCount
}

// GetLastTTL returns the TTL passed to the most recent Set.
func (c *MemoryCache) GetLastTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LastTTL
}

// Get returns the value at key or cache.ErrCacheMiss.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GetCount++
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	e, ok := c.lookup(key)
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value under key with ttl.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.SetCount++
	c.LastTTL = ttl
	if c.SetErr != nil {
		return c.SetErr
	}
	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}
	c.entries[key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Delete removes key. Deleting an absent key succeeds.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.DeleteCount++
	if c.DeleteErr != nil {
		return c.DeleteErr
	}
	delete(c.entries, key)
	return nil
}

// Ping returns PingErr.
func (c *MemoryCache) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.PingErr
}

func (c *MemoryCache) lookup(key string) (cacheEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		return cacheEntry{}, false
	}
	return e, true
}
