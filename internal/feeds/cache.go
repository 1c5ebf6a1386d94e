package feeds

import (
	"sync"

	"github.com/travelsafe/security-barometer/internal/model"
)

// Cache holds the most recent batch fetched from each feed so the API
// can serve the current alert picture without refetching
type Cache struct {
	mu      sync.RWMutex
	batches map[string][]model.UniversalAlert
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{batches: make(map[string][]model.UniversalAlert)}
}

// Update replaces the cached batch for one feed
func (c *Cache) Update(feedName string, batch []model.UniversalAlert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches[feedName] = batch
}

// Snapshot returns a copy of every cached alert across all feeds
func (c *Cache) Snapshot() []model.UniversalAlert {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []model.UniversalAlert
	for _, batch := range c.batches {
		all = append(all, batch...)
	}
	return all
}
