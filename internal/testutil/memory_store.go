// Package testutil provides in-memory doubles of the catalog's document store
// and cache for testing.
package testutil

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/Sternrassler/product-catalog/pkg/store"
)

// MemoryStore is a thread-safe in-memory product store with call counters
// and error injection. Ids are 24 hex characters like ObjectIDs.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   []map[string]any
	nextID int

	// Err, when set, is returned by every operation except Ping.
	Err error
	// PingErr is returned by Ping.
	PingErr error

	// Tracking
	FindAllCount int
	WriteCount   int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed inserts products directly, bypassing counters, and returns their ids.
func (m *MemoryStore) Seed(products ...store.Product) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, m.insert(p))
	}
	return ids
}

// SetErr sets the injected error.
func (m *MemoryStore) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// GetFindAllCount returns the number of FindAll calls.
func (m *MemoryStore) GetFindAllCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.FindAllCount
}

// GetWriteCount returns the number of mutation calls.
func (m *MemoryStore) GetWriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.WriteCount
}

// Len returns the number of stored products.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// FindAll returns every product in insertion order.
func (m *MemoryStore) FindAll(ctx context.Context) ([]store.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindAllCount++
	if m.Err != nil {
		return nil, m.Err
	}

	products := make([]store.Product, 0, len(m.docs))
	for _, doc := range m.docs {
		products = append(products, store.FromFields(doc))
	}
	return products, nil
}

// FindByID returns the product with id or store.ErrNotFound.
func (m *MemoryStore) FindByID(ctx context.Context, id string) (store.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return store.Product{}, m.Err
	}
	if i := m.index(id); i >= 0 {
		return store.FromFields(m.docs[i]), nil
	}
	return store.Product{}, store.ErrNotFound
}

// InsertOne stores p under a new id.
func (m *MemoryStore) InsertOne(ctx context.Context, p store.Product) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCount++
	if m.Err != nil {
		return "", m.Err
	}
	return m.insert(p), nil
}

// InsertMany stores all products.
func (m *MemoryStore) InsertMany(ctx context.Context, products []store.Product) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCount++
	if m.Err != nil {
		return 0, m.Err
	}
	for _, p := range products {
		m.insert(p)
	}
	return len(products), nil
}

// UpdateOne merges fields into the product with id.
func (m *MemoryStore) UpdateOne(ctx context.Context, id string, fields map[string]any) (store.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCount++
	if m.Err != nil {
		return store.UpdateResult{}, m.Err
	}

	i := m.index(id)
	if i < 0 {
		return store.UpdateResult{}, nil
	}

	modified := false
	for k, v := range fields {
		if old, ok := m.docs[i][k]; !ok || fmt.Sprint(old) != fmt.Sprint(v) {
			modified = true
		}
		m.docs[i][k] = v
	}

	res := store.UpdateResult{MatchedCount: 1}
	if modified {
		res.ModifiedCount = 1
	}
	return res, nil
}

// DeleteOne removes the product with id.
func (m *MemoryStore) DeleteOne(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCount++
	if m.Err != nil {
		return 0, m.Err
	}

	i := m.index(id)
	if i < 0 {
		return 0, nil
	}
	m.docs = append(m.docs[:i], m.docs[i+1:]...)
	return 1, nil
}

// Search matches query against name and description, ignoring case.
func (m *MemoryStore) Search(ctx context.Context, query string) ([]store.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	q := strings.ToLower(query)
	products := []store.Product{}
	for _, doc := range m.docs {
		p := store.FromFields(doc)
		if (p.Name != nil && strings.Contains(strings.ToLower(*p.Name), q)) ||
			(p.Description != nil && strings.Contains(strings.ToLower(*p.Description), q)) {
			products = append(products, p)
		}
	}
	return products, nil
}

// AggregateStats computes count, price statistics and category counts.
func (m *MemoryStore) AggregateStats(ctx context.Context) (store.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return store.Stats{}, m.Err
	}

	stats := store.Stats{Count: int64(len(m.docs)), Categories: map[string]int64{}}
	var sum float64
	var priced int
	for _, doc := range m.docs {
		p := store.FromFields(doc)

		label := store.UncategorizedLabel
		if p.Category != nil && *p.Category != "" {
			label = *p.Category
		}
		stats.Categories[label]++

		if p.Price == nil {
			continue
		}
		price := *p.Price
		sum += price
		priced++
		if stats.MinPrice == nil || price < *stats.MinPrice {
			stats.MinPrice = store.Ptr(price)
		}
		if stats.MaxPrice == nil || price > *stats.MaxPrice {
			stats.MaxPrice = store.Ptr(price)
		}
	}
	if priced > 0 {
		stats.AvgPrice = store.Ptr(sum / float64(priced))
	}
	return stats, nil
}

// Ping returns PingErr.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PingErr
}

func (m *MemoryStore) insert(p store.Product) string {
	m.nextID++
	id := fmt.Sprintf("%024x", m.nextID)

	doc := maps.Clone(p.Fields())
	doc[store.FieldID] = id
	m.docs = append(m.docs, doc)
	return id
}

func (m *MemoryStore) index(id string) int {
	for i, doc := range m.docs {
		if doc[store.FieldID] == id {
			return i
		}
	}
	return -1
}
