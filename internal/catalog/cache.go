package catalog

import (
	"context"
	"sync"
	"time"

	"sitecheckout/internal/logger"
)

// Cache holds the reference data fetched once when a checkout session starts.
type Cache struct {
	catalog    *Catalog
	foremen    []string
	catalogErr error
	foremenErr error

	// Cache management
	loaded     bool
	lastLoaded time.Time
	mutex      sync.RWMutex
}

func NewCache() *Cache {
	return &Cache{catalog: Empty()}
}

// Load fetches the catalog and the foreman list. Each fetch is attempted exactly once per
// cache; a failure is logged and leaves that part empty.
func (c *Cache) Load(ctx context.Context, src Source) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.loaded {
		return
	}
	c.loaded = true
	c.lastLoaded = time.Now()

	cat, err := src.LoadCatalog(ctx)
	if err != nil {
		logger.LogError("Error fetching items and types: %v", err)
		c.catalogErr = err
	} else if cat != nil {
		c.catalog = cat
	}

	foremen, err := src.LoadForemen(ctx)
	if err != nil {
		logger.LogError("Error fetching foremen: %v", err)
		c.foremenErr = err
	} else {
		c.foremen = append([]string(nil), foremen...)
	}

	logger.LogInfo("Reference data loaded: %d items, %d foremen", c.catalog.Len(), len(c.foremen))
}

func (c *Cache) Catalog() *Catalog {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.catalog
}

func (c *Cache) Foremen() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return append([]string(nil), c.foremen...)
}

// HasForeman reports whether name is in the fetched foreman list.
func (c *Cache) HasForeman(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, f := range c.foremen {
		if f == name {
			return true
		}
	}
	return false
}

// Errors returns the load failures, if any, in fetch order.
func (c *Cache) Errors() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var errs []error
	if c.catalogErr != nil {
		errs = append(errs, c.catalogErr)
	}
	if c.foremenErr != nil {
		errs = append(errs, c.foremenErr)
	}
	return errs
}

// Get cache age for debugging
func (c *Cache) Age() time.Duration {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return time.Since(c.lastLoaded)
}

// Stats returns cache statistics for debugging/monitoring
func (c *Cache) Stats() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return map[string]interface{}{
		"items_count":   c.catalog.Len(),
		"pools_count":   len(c.catalog.counts),
		"foremen_count": len(c.foremen),
		"last_loaded":   c.lastLoaded,
		"cache_age":     time.Since(c.lastLoaded).String(),
		"catalog_ok":    c.catalogErr == nil,
		"foremen_ok":    c.foremenErr == nil,
	}
}
