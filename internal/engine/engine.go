// Package engine provides the real-time frame loop that drives a session.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/atmx/merchant-engine/internal/clock"
	"github.com/atmx/merchant-engine/internal/session"
)

// Game is the part of a session the engine drives.
type Game interface {
	Step(ctx context.Context, deltaSeconds float64) (clock.Tick, error)
	Depot(ctx context.Context) (session.DepotView, error)
}

// Engine advances a game once per frame with the measured real delta.
type Engine struct {
	game     Game
	interval time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates an engine that steps game every interval.
func New(game Game, interval time.Duration) *Engine {
	return &Engine{
		game:     game,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Run starts the frame loop. Blocks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	slog.Info("frame loop started", "interval", e.interval)
	last := e.now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("frame loop stopped", "reason", ctx.Err())
			return nil
		case <-e.stopCh:
			slog.Info("frame loop stopped")
			return nil
		case <-ticker.C:
		}

		now := e.now()
		delta := now.Sub(last).Seconds()
		last = now

		tick, err := e.game.Step(ctx, delta)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return err
		}
		if tick.DayChanged {
			e.report(ctx, tick)
		}
	}
}

// Stop halts the frame loop. It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// report logs the depot's state at the end of a simulated day.
func (e *Engine) report(ctx context.Context, tick clock.Tick) {
	depot, err := e.game.Depot(ctx)
	if err != nil {
		return
	}
	h := depot.History
	n := h.Len()
	wealth := h.Wealth[n-1]
	change := wealth
	if n > 1 {
		change = wealth.Sub(h.Wealth[n-2])
	}

	slog.Info("daily report",
		"date", tick.Now.Format("Mon 2 Jan 2006"),
		"wealth", humanize.CommafWithDigits(wealth.InexactFloat64(), 2),
		"change", humanize.CommafWithDigits(change.InexactFloat64(), 2),
		"cash", humanize.CommafWithDigits(depot.Cash.InexactFloat64(), 2),
		"stock", humanize.Comma(h.TotalStock[n-1]),
		"trades", humanize.Comma(int64(depot.TradeCount)),
		"cycles", humanize.Comma(depot.CycleSummary.Totals.Total),
	)
}
