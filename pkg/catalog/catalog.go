// Package catalog provides the saga's read-through caches over the
// three lookups the Sourcing Merger and Trust Evaluator need: the
// item catalog itself, per-(brand, category) price reference
// statistics, and vendor profiles. Each is backed by go-cache so a
// slow upstream loader (a database, a remote feed) only pays its cost
// once per TTL window.
package catalog

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

// DefaultTTL bounds how long a catalog snapshot is served before the
// loader is consulted again.
const DefaultTTL = 5 * time.Minute

// Loader fetches the current catalog from whatever backs it.
type Loader func(ctx context.Context) ([]saga.Offer, error)

// StaticLoader returns a Loader that always serves a fixed, in-memory
// item set — the default for tests and small deployments seeded from
// a config file.
func StaticLoader(items []saga.Offer) Loader {
	cp := make([]saga.Offer, len(items))
	copy(cp, items)
	return func(ctx context.Context) ([]saga.Offer, error) {
		out := make([]saga.Offer, len(cp))
		copy(out, cp)
		return out, nil
	}
}

const catalogCacheKey = "catalog.items"

// Catalog is a saga.CatalogProvider backed by a TTL cache in front of
// a Loader.
type Catalog struct {
	loader Loader
	cache  *cache.Cache
}

// New builds a Catalog that refreshes from loader at most once per ttl.
func New(loader Loader, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		loader: loader,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Load implements saga.CatalogProvider.
func (c *Catalog) Load(ctx context.Context) ([]saga.Offer, error) {
	if cached, ok := c.cache.Get(catalogCacheKey); ok {
		return cached.([]saga.Offer), nil
	}
	items, err := c.loader(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(catalogCacheKey, items)
	return items, nil
}

// Invalidate forces the next Load to consult the loader again.
func (c *Catalog) Invalidate() {
	c.cache.Delete(catalogCacheKey)
}

var _ saga.CatalogProvider = (*Catalog)(nil)
