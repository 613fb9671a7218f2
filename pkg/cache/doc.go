// Package cache provides the Redis cache adapter used by the catalog.
//
// The adapter stores byte values under string keys with a TTL. It does not
// know what it stores; the catalog serializes the product listing and
// decides when to read, populate and invalidate.
//
// # Basic Usage
//
//	redisClient := cache.NewClient(cache.DefaultConfig())
//	manager := cache.NewManager(redisClient)
//
//	data, err := manager.Get(ctx, "products")
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - load from the store, then Set
//	}
//
//	if err := manager.Set(ctx, "products", payload, time.Hour); err != nil {
//		// Non-fatal for readers
//	}
//
//	_ = manager.Delete(ctx, "products") // idempotent
//
// # Connection Loss
//
// The client retries individual commands with backoff capped at
// Config.MaxBackoff. A Supervisor pings Redis in the background; while Redis
// is down it keeps retrying with exponential backoff capped at two seconds
// and never gives up:
//
//	sup := cache.NewSupervisor(manager, cache.DefaultSupervisorConfig(), logger)
//	go sup.Run(ctx)
//
//	if !sup.Connected() {
//		// Report degraded health
//	}
//
// # Metrics
//
//   - catalog_cache_hits_total{layer="redis"} - Cache hits
//   - catalog_cache_misses_total - Cache misses
//   - catalog_cache_size_bytes{layer="redis"} - Size of the last cached value
//   - catalog_cache_errors_total{operation} - Cache operation errors
//   - catalog_cache_reconnect_attempts_total - Pings issued while Redis is down
//   - catalog_cache_reconnect_backoff_seconds - Wait between reconnect attempts
//   - catalog_cache_connected - 1 while Redis is reachable
package cache
