// Package store implements the product document store on MongoDB.
//
// The package knows nothing about caching. It exposes the collection
// operations the catalog needs: listing, lookup by id, insert, $set update,
// delete, case-insensitive search and price/category aggregation.
package store

import (
	"errors"
)

var (
	// ErrNotFound indicates no product matched the given id.
	ErrNotFound = errors.New("product not found")

	// ErrRejected indicates the store refused a document (schema validation
	// or duplicate key).
	ErrRejected = errors.New("document rejected by store")
)

// UpdateResult reports the outcome of an update.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// Stats is the aggregate view of the collection.
//
// AvgPrice, MinPrice and MaxPrice are nil when the collection is empty or no
// product carries a numeric price.
type Stats struct {
	Count      int64            `json:"count"`
	AvgPrice   *float64         `json:"avgPrice"`
	MinPrice   *float64         `json:"minPrice"`
	MaxPrice   *float64         `json:"maxPrice"`
	Categories map[string]int64 `json:"categories"`
}

// UncategorizedLabel groups products without a category in Stats.Categories.
const UncategorizedLabel = "uncategorized"
