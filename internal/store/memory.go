package store

import (
	"context"
	"sync"

	"github.com/atmx/merchant-engine/internal/stats"
)

type memoryEntry struct {
	marker string
	stats  *stats.Stats
}

// MemoryCache implements StatsCache in process. It keeps only the newest
// marker per window, so it never grows beyond one entry per window. Entries
// are deep-copied on Put and Get.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[stats.Window]memoryEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[stats.Window]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key Key) (*stats.Stats, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key.Window]
	if !ok || e.marker != key.Marker {
		return nil, false, nil
	}
	return e.stats.Clone(), true, nil
}

func (c *MemoryCache) Put(_ context.Context, key Key, s *stats.Stats) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key.Window] = memoryEntry{marker: key.Marker, stats: s.Clone()}
	return nil
}
