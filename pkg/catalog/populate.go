package catalog

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Sternrassler/product-catalog/pkg/store"
)

// SampleCategories are the labels assigned to synthetic products.
var SampleCategories = []string{
	"Electronics",
	"Clothing",
	"Books",
	"Home",
	"Sports",
	"Toys",
	"Garden",
	"Beauty",
}

var sampleAdjectives = []string{
	"Compact", "Deluxe", "Eco", "Classic", "Smart", "Portable", "Premium", "Rugged",
}

// GenerateProducts returns n synthetic products with prices between 10 and
// 1000 (two decimals), about 80% in stock, and createdAt set to now.
func GenerateProducts(n int, now time.Time, rng *rand.Rand) []store.Product {
	createdAt := now.UTC()
	products := make([]store.Product, 0, n)

	for i := 1; i <= n; i++ {
		category := SampleCategories[rng.IntN(len(SampleCategories))]
		adjective := sampleAdjectives[rng.IntN(len(sampleAdjectives))]
		price := math.Round((10+rng.Float64()*990)*100) / 100

		products = append(products, store.Product{
			Name:        store.Ptr(fmt.Sprintf("Product %d", i)),
			Description: store.Ptr(fmt.Sprintf("%s %s item number %d", adjective, category, i)),
			Price:       store.Ptr(price),
			Category:    store.Ptr(category),
			InStock:     store.Ptr(rng.IntN(10) < 8),
			CreatedAt:   store.Ptr(createdAt),
		})
	}
	return products
}
