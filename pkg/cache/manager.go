package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidTTL indicates a non-positive TTL was passed to Set
	ErrInvalidTTL = errors.New("cache ttl must be positive")
)

// Manager handles byte-level caching operations with a Redis backend.
// Values are stored as-is; serialization is the caller's concern.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}

	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves the value stored under key.
// Returns ErrCacheMiss if the key doesn't exist or has expired.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := m.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return data, nil
}

// Set stores value under key. Redis evicts the key once ttl elapses.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	if err := m.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Set(float64(len(value)))
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, key).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of key, or ErrCacheMiss if it is absent.
// The service does not need it on any request path; it exists for tests and
// operators checking when a cached listing expires.
func (m *Manager) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := m.redis.TTL(ctx, key).Result()
	if err != nil {
		CacheErrors.WithLabelValues("ttl").Inc()
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	// -2 means the key does not exist.
	if ttl == -2 || ttl == -2*time.Second {
		return 0, ErrCacheMiss
	}
	return ttl, nil
}

// Ping checks connectivity to Redis.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
