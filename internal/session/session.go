// Package session owns one running game: market, clock, depot and
// statistics. A single goroutine holds all of that state and every request,
// read or write, is executed on it in arrival order. Reads therefore always
// observe a consistent instant and a sale can never interleave with a price
// step.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atmx/merchant-engine/internal/clock"
	"github.com/atmx/merchant-engine/internal/ledger"
	"github.com/atmx/merchant-engine/internal/market"
	"github.com/atmx/merchant-engine/internal/stats"
	"github.com/atmx/merchant-engine/internal/store"
)

// ErrClosed is returned by requests made after Close.
var ErrClosed = errors.New("session: closed")

// Config describes a new game.
type Config struct {
	Catalog []market.Spec
	Seed    uint64
	Ledger  ledger.Config
	Start   time.Time
	Speed   clock.Speed

	// Cache stores computed statistics; nil selects an in-memory cache.
	Cache store.StatsCache
}

// request is a unit of work for the owning goroutine.
type request struct {
	fn   func()
	done chan struct{}
}

// Session serializes all access to one game's state.
type Session struct {
	market *market.Market
	clock  *clock.Clock
	depot  *ledger.Depot
	rec    *stats.Reconstructor
	cache  store.StatsCache

	requests  chan request
	stopCh    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New builds the game state and starts the owning goroutine.
func New(cfg Config) (*Session, error) {
	m, err := market.NewMarket(cfg.Catalog, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("create market: %w", err)
	}
	clk, err := clock.New(cfg.Start, cfg.Speed)
	if err != nil {
		return nil, fmt.Errorf("create clock: %w", err)
	}
	depot := ledger.New(cfg.Ledger, m.Names(), clk.Now())

	cache := cfg.Cache
	if cache == nil {
		cache = store.NewMemoryCache()
	}

	s := &Session{
		market:   m,
		clock:    clk,
		depot:    depot,
		rec:      stats.New(depot, m),
		cache:    cache,
		requests: make(chan request),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
		subs:     make(map[int]chan Event),
	}
	s.observeMarket()
	s.observeDepot()
	go s.loop()
	return s, nil
}

func (s *Session) loop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stopCh:
			return
		case req := <-s.requests:
			req.fn()
			close(req.done)
		}
	}
}

// do runs fn on the owning goroutine and waits for it. Once accepted, fn
// always runs to completion; ctx only bounds the wait to be accepted.
func (s *Session) do(ctx context.Context, fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case s.requests <- req:
	case <-s.stopCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

// Close stops the owning goroutine and closes all subscriptions.
// It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.stopped

		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
	})
}
