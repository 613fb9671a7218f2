// Package catalog implements the product catalog operations and the
// consistency protocol between the document store and the listing cache.
//
// The unfiltered product listing is cached under a single key. Reads go
// through the cache and populate it on a miss; every successful mutation
// deletes the key afterwards. Nothing serializes readers against writers, so
// a reader that loaded the listing before a write may store it after the
// write's invalidation. That staleness is bounded by the listing TTL.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/product-catalog/pkg/cache"
	"github.com/Sternrassler/product-catalog/pkg/store"
)

const (
	// ListingKey is the cache key of the full product listing.
	ListingKey = "products"

	// DefaultListingTTL is how long a cached listing lives without invalidation.
	DefaultListingTTL = time.Hour

	// DefaultInvalidationTimeout bounds a single invalidation attempt.
	DefaultInvalidationTimeout = 2 * time.Second

	// DefaultPopulateCount is the number of synthetic products inserted by Populate.
	DefaultPopulateCount = 1000
)

// Store is the document store the catalog reads and mutates.
type Store interface {
	FindAll(ctx context.Context) ([]store.Product, error)
	FindByID(ctx context.Context, id string) (store.Product, error)
	InsertOne(ctx context.Context, p store.Product) (string, error)
	InsertMany(ctx context.Context, products []store.Product) (int, error)
	UpdateOne(ctx context.Context, id string, fields map[string]any) (store.UpdateResult, error)
	DeleteOne(ctx context.Context, id string) (int64, error)
	Search(ctx context.Context, query string) ([]store.Product, error)
	AggregateStats(ctx context.Context) (store.Stats, error)
	Ping(ctx context.Context) error
}

// Cache is the key-value store holding the serialized listing.
// Get must return cache.ErrCacheMiss for an absent key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Source tells where a listing was served from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceDatabase Source = "database"
)

// Listing is the result of a cache-through read.
type Listing struct {
	Source   Source
	Products []store.Product
}

// Config holds the catalog settings.
type Config struct {
	// ListingTTL is the expiry of a cached listing.
	ListingTTL time.Duration

	// InvalidationTimeout bounds each invalidation, independent of the caller's context.
	InvalidationTimeout time.Duration

	// PopulateCount is the number of products inserted by Populate.
	PopulateCount int
}

// DefaultConfig returns the default catalog settings.
func DefaultConfig() Config {
	return Config{
		ListingTTL:          DefaultListingTTL,
		InvalidationTimeout: DefaultInvalidationTimeout,
		PopulateCount:       DefaultPopulateCount,
	}
}

// Service implements the catalog operations.
type Service struct {
	store  Store
	cache  Cache
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a catalog service. Zero config fields take defaults.
func New(st Store, c Cache, cfg Config, logger zerolog.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}

	def := DefaultConfig()
	if cfg.ListingTTL <= 0 {
		cfg.ListingTTL = def.ListingTTL
	}
	if cfg.InvalidationTimeout <= 0 {
		cfg.InvalidationTimeout = def.InvalidationTimeout
	}
	if cfg.PopulateCount <= 0 {
		cfg.PopulateCount = def.PopulateCount
	}

	return &Service{
		store:  st,
		cache:  c,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

// List returns the full listing straight from the store, bypassing the cache.
func (s *Service) List(ctx context.Context) ([]store.Product, error) {
	products, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, storeError("list", err)
	}
	return products, nil
}

// Listing returns the full listing through the cache.
//
// On a hit the store is not queried. On a miss the store is queried once and
// the result is written to the cache with the listing TTL. Cache failures
// never fail the read: a failed get is treated as a miss and a failed set is
// logged. A store failure fails the read and caches nothing.
func (s *Service) Listing(ctx context.Context) (Listing, error) {
	if products, ok := s.cachedListing(ctx); ok {
		ListingReads.WithLabelValues(string(SourceCache)).Inc()
		return Listing{Source: SourceCache, Products: products}, nil
	}

	products, err := s.store.FindAll(ctx)
	if err != nil {
		return Listing{}, storeError("listing", err)
	}
	if products == nil {
		products = []store.Product{}
	}

	s.populateListing(ctx, products)

	ListingReads.WithLabelValues(string(SourceDatabase)).Inc()
	return Listing{Source: SourceDatabase, Products: products}, nil
}

func (s *Service) cachedListing(ctx context.Context) ([]store.Product, bool) {
	data, err := s.cache.Get(ctx, ListingKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Debug().Str("key", ListingKey).Msg("Listing cache miss")
		return nil, false
	}
	if err != nil {
		ListingCacheFallbacks.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", ListingKey).Msg("Cache get error, reading from store")
		return nil, false
	}

	products, err := store.DecodeListing(data)
	if err != nil {
		ListingCacheFallbacks.WithLabelValues("decode").Inc()
		s.logger.Warn().Err(err).Str("key", ListingKey).Msg("Cached listing is corrupt, reading from store")
		return nil, false
	}
	if products == nil {
		products = []store.Product{}
	}

	s.logger.Debug().Str("key", ListingKey).Int("count", len(products)).Msg("Listing cache hit")
	return products, true
}

func (s *Service) populateListing(ctx context.Context, products []store.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		ListingCacheFallbacks.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Msg("Failed to encode listing for cache")
		return
	}

	if err := s.cache.Set(ctx, ListingKey, data, s.config.ListingTTL); err != nil {
		ListingCacheFallbacks.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", ListingKey).Msg("Failed to cache listing")
		return
	}

	s.logger.Debug().
		Str("key", ListingKey).
		Int("count", len(products)).
		Dur("ttl", s.config.ListingTTL).
		Msg("Cached listing")
}

// InvalidateListing deletes the cached listing. It must only be called after
// a mutation was acknowledged by the store.
//
// The delete runs detached from ctx cancellation, bounded by the
// invalidation timeout, so a caller hanging up after the commit does not skip
// it. Failures are logged and counted but not returned: the mutation already
// succeeded and the stale entry expires with its TTL.
func (s *Service) InvalidateListing(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.InvalidationTimeout)
	defer cancel()

	if err := s.cache.Delete(ctx, ListingKey); err != nil {
		Invalidations.WithLabelValues("error").Inc()
		s.logger.Warn().
			Err(err).
			Str("key", ListingKey).
			Dur("ttl", s.config.ListingTTL).
			Msg("Listing invalidation failed, cache may be stale until expiry")
		return
	}

	Invalidations.WithLabelValues("ok").Inc()
	s.logger.Debug().Str("key", ListingKey).Msg("Listing invalidated")
}

// Get returns the product with the given id.
func (s *Service) Get(ctx context.Context, id string) (store.Product, error) {
	p, err := s.store.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Product{}, notFound("get", id)
	}
	if err != nil {
		return store.Product{}, storeError("get", err)
	}
	return p, nil
}

// Search returns products whose name or description contains query, ignoring case.
func (s *Service) Search(ctx context.Context, query string) ([]store.Product, error) {
	products, err := s.store.Search(ctx, query)
	if err != nil {
		return nil, storeError("search", err)
	}
	return products, nil
}

// Stats returns the collection aggregate.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	stats, err := s.store.AggregateStats(ctx)
	if err != nil {
		return store.Stats{}, storeError("stats", err)
	}
	if stats.Categories == nil {
		stats.Categories = map[string]int64{}
	}
	return stats, nil
}

// Create inserts p and returns its id. The id in p is ignored and createdAt
// defaults to now.
func (s *Service) Create(ctx context.Context, p store.Product) (string, error) {
	if err := validateProduct(&p); err != nil {
		return "", validationError("create", err)
	}

	p.ID = ""
	if p.CreatedAt == nil {
		now := s.now().UTC()
		p.CreatedAt = &now
	}

	id, err := s.store.InsertOne(ctx, p)
	if err != nil {
		return "", s.mutationError("create", err)
	}

	s.InvalidateListing(ctx)
	return id, nil
}

// Update applies the attributes present in patch to the product with the
// given id. The listing is invalidated whenever the store accepted the
// update, even if it matched nothing; a KindNotFound error is returned in that case.
func (s *Service) Update(ctx context.Context, id string, patch store.Product) (store.UpdateResult, error) {
	if err := validatePatch(&patch); err != nil {
		return store.UpdateResult{}, validationError("update", err)
	}

	res, err := s.store.UpdateOne(ctx, id, patch.Fields())
	if err != nil {
		return store.UpdateResult{}, s.mutationError("update", err)
	}

	s.InvalidateListing(ctx)

	if res.MatchedCount == 0 {
		return res, notFound("update", id)
	}
	return res, nil
}

// Delete removes the product with the given id.
func (s *Service) Delete(ctx context.Context, id string) (int64, error) {
	n, err := s.store.DeleteOne(ctx, id)
	if err != nil {
		return 0, storeError("delete", err)
	}

	s.InvalidateListing(ctx)

	if n == 0 {
		return 0, notFound("delete", id)
	}
	return n, nil
}

// Populate bulk-inserts the configured number of synthetic products.
func (s *Service) Populate(ctx context.Context) (int, error) {
	now := s.now()
	rng := rand.New(rand.NewPCG(uint64(now.UnixNano()), uint64(s.config.PopulateCount)))
	products := GenerateProducts(s.config.PopulateCount, now, rng)

	n, err := s.store.InsertMany(ctx, products)
	if err != nil {
		return 0, s.mutationError("populate", err)
	}

	s.InvalidateListing(ctx)

	s.logger.Info().Int("inserted", n).Msg("Populated synthetic products")
	return n, nil
}

// ClearCache deletes the cached listing on request. Unlike InvalidateListing
// a failure is returned, since clearing is the whole point of the call.
// Clearing an absent entry succeeds.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Delete(ctx, ListingKey); err != nil {
		return &Error{Kind: KindCacheUnavailable, Op: "clear_cache", Message: "cache delete failed", Err: err}
	}

	s.logger.Info().Str("key", ListingKey).Msg("Listing cache cleared")
	return nil
}

// PingStore checks document store connectivity.
func (s *Service) PingStore(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingCache checks cache connectivity.
func (s *Service) PingCache(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

func (s *Service) mutationError(op string, err error) error {
	if errors.Is(err, store.ErrRejected) {
		return validationError(op, err)
	}
	return storeError(op, err)
}
