// Package store caches derived statistics. Nothing here is a source of
// truth: every entry can be recomputed from the ledger, and a key embeds the
// mutation marker of the state it was computed from, so a stale entry is
// simply never asked for again.
package store

import (
	"context"
	"fmt"

	"github.com/atmx/merchant-engine/internal/stats"
)

// Key addresses one cached result.
type Key struct {
	Window stats.Window
	Marker string // see stats.Reconstructor.Marker
}

func (k Key) String() string { return fmt.Sprintf("%s:%s", k.Window, k.Marker) }

// StatsCache stores computed statistics. Implementations include Redis and
// in-memory (default and testing).
type StatsCache interface {
	// Get returns the cached result for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key Key) (*stats.Stats, bool, error)

	// Put stores s under key.
	Put(ctx context.Context, key Key, s *stats.Stats) error
}
