package gtfs

import (
	"sync"

	"github.com/rs/zerolog"
)

// Cache holds loaded datasets keyed by operator. A dataset is loaded on
// first use and reused across resolution batches until the underlying
// files change on disk.
type Cache struct {
	dir    string
	logger zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	dataset   *Dataset
	routesMod int64
	stopsMod  int64
}

// NewCache creates a dataset cache over the given GTFS storage dir.
func NewCache(dir string, logger zerolog.Logger) *Cache {
	return &Cache{
		dir:     dir,
		logger:  logger,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the dataset for an operator, loading it on first use and
// reloading it when routes.json or stops.json changed on disk.
func (c *Cache) Get(operator string) (*Dataset, error) {
	routesMod, stopsMod, err := modTimes(c.dir, operator)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	entry, ok := c.entries[operator]
	c.mu.RUnlock()

	if ok && entry.routesMod == routesMod && entry.stopsMod == stopsMod {
		return entry.dataset, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the write lock.
	if entry, ok := c.entries[operator]; ok && entry.routesMod == routesMod && entry.stopsMod == stopsMod {
		return entry.dataset, nil
	}

	ds, err := Load(c.dir, operator)
	if err != nil {
		return nil, err
	}

	c.entries[operator] = &cacheEntry{
		dataset:   ds,
		routesMod: routesMod,
		stopsMod:  stopsMod,
	}

	c.logger.Info().
		Str("operator", operator).
		Int("routes", len(ds.Routes)).
		Int("stops", len(ds.Stops)).
		Msg("gtfs dataset loaded")

	return ds, nil
}

// Invalidate drops the cached dataset for an operator.
func (c *Cache) Invalidate(operator string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, operator)
}
