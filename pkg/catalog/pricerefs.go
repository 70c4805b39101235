package catalog

import (
	"context"
	"fmt"

	cache "github.com/patrickmn/go-cache"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

// PriceRefs is a saga.PriceRefProvider over a fixed table of
// (brand, category) buckets, falling back to brand-only, category-only,
// and finally a global bucket when the most specific one is absent.
type PriceRefs struct {
	buckets map[string]map[string]saga.PriceStat
	cache   *cache.Cache
}

// NewPriceRefs builds a PriceRefs from a bucket table keyed
// "brand|category" ("|category" and "brand|" for the single-dimension
// fallbacks, "|" for the global bucket), each mapping a metric name
// (price, weight, dim_*) to its robust statistics.
func NewPriceRefs(buckets map[string]map[string]saga.PriceStat) *PriceRefs {
	return &PriceRefs{
		buckets: buckets,
		cache:   cache.New(DefaultTTL, 2*DefaultTTL),
	}
}

func bucketKey(brand, category string) string {
	return fmt.Sprintf("%s|%s", brand, category)
}

// Lookup implements saga.PriceRefProvider with the most-specific
// bucket available: (brand, category) → brand → category → global.
func (p *PriceRefs) Lookup(ctx context.Context, brand, category string) (map[string]saga.PriceStat, error) {
	candidates := []string{
		bucketKey(brand, category),
		bucketKey(brand, ""),
		bucketKey("", category),
		bucketKey("", ""),
	}
	for _, key := range candidates {
		if cached, ok := p.cache.Get(key); ok {
			if stats, ok := cached.(map[string]saga.PriceStat); ok {
				return stats, nil
			}
			continue
		}
		if stats, ok := p.buckets[key]; ok {
			p.cache.SetDefault(key, stats)
			return stats, nil
		}
	}
	return nil, nil
}

var _ saga.PriceRefProvider = (*PriceRefs)(nil)
