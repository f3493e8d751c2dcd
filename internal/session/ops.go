package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/merchant-engine/internal/clock"
	"github.com/atmx/merchant-engine/internal/ledger"
	"github.com/atmx/merchant-engine/internal/metrics"
	"github.com/atmx/merchant-engine/internal/model"
	"github.com/atmx/merchant-engine/internal/stats"
	"github.com/atmx/merchant-engine/internal/store"
)

// TradeResult is the outcome of a buy or sell. A rejection is a normal
// result, not an error.
type TradeResult struct {
	Success bool               `json:"success"`
	Reason  string             `json:"reason,omitempty"`
	Code    ledger.Reason      `json:"code,omitempty"`
	Trade   *model.Trade       `json:"trade,omitempty"`
	Cycles  []model.TradeCycle `json:"cycles,omitempty"`
}

// Advance moves the clock by deltaSeconds of real time at speed. Prices step
// once per simulated hour crossed; a day change closes the depot's day.
func (s *Session) Advance(ctx context.Context, deltaSeconds float64, speed clock.Speed) (clock.Tick, error) {
	var (
		tick clock.Tick
		err  error
	)
	if doErr := s.do(ctx, func() {
		tick, err = s.clock.Advance(deltaSeconds, speed)
		if err != nil {
			return
		}
		s.applyTick(tick)
	}); doErr != nil {
		return clock.Tick{}, doErr
	}
	return tick, err
}

// applyTick runs on the owning goroutine.
func (s *Session) applyTick(tick clock.Tick) {
	for i := 0; i < tick.HoursCrossed; i++ {
		s.market.AdvanceHour()
	}
	if tick.HoursCrossed > 0 {
		metrics.SimHours.Add(float64(tick.HoursCrossed))
		s.observeMarket()
		s.publish(Event{Type: EventTick, Time: tick.Now, Tick: &tick, Prices: s.prices()})
	}

	if tick.DayChanged {
		snap := s.depot.CloseDay(s.market, tick.Now)
		metrics.SimDays.Inc()
		s.observeDepot()
		slog.Debug("day closed",
			"date", tick.Now.Format("2006-01-02"),
			"wealth", snap.Wealth.String(),
			"cash", snap.Cash.String(),
		)
		s.publish(Event{Type: EventDay, Time: tick.Now, Snapshot: &snap})
	}
}

// Buy purchases qty units of the named commodity at its current price.
func (s *Session) Buy(ctx context.Context, name string, qty int64) (TradeResult, error) {
	var res TradeResult
	err := s.do(ctx, func() {
		c, err := s.market.Get(name)
		if err != nil {
			res = s.rejected(model.Purchase, ledger.Reject(ledger.ReasonUnknownCommodity, name))
			return
		}
		trade, err := s.depot.Buy(c, qty, s.clock.Now())
		if err != nil {
			res = s.rejected(model.Purchase, err)
			return
		}
		res = s.executed(trade, nil)
	})
	return res, err
}

// Sell sells qty units of the named commodity at its current price.
func (s *Session) Sell(ctx context.Context, name string, qty int64) (TradeResult, error) {
	var res TradeResult
	err := s.do(ctx, func() {
		c, err := s.market.Get(name)
		if err != nil {
			res = s.rejected(model.Sale, ledger.Reject(ledger.ReasonUnknownCommodity, name))
			return
		}
		trade, cycles, err := s.depot.Sell(c, qty, s.clock.Now())
		if err != nil {
			res = s.rejected(model.Sale, err)
			return
		}
		res = s.executed(trade, cycles)
	})
	return res, err
}

func (s *Session) executed(trade *model.Trade, cycles []model.TradeCycle) TradeResult {
	metrics.TradesTotal.WithLabelValues(string(trade.Direction)).Inc()
	metrics.TradeVolume.WithLabelValues(trade.Commodity, string(trade.Direction)).Add(float64(trade.Quantity))
	for _, c := range cycles {
		outcome := "loss"
		if c.Profit.IsPositive() {
			outcome = "profit"
		}
		metrics.TradeCycles.WithLabelValues(outcome).Inc()
	}
	s.observeDepot()

	slog.Info("trade executed",
		"direction", trade.Direction,
		"commodity", trade.Commodity,
		"qty", trade.Quantity,
		"price", trade.Price.String(),
		"total", trade.Total.String(),
		"cycles", len(cycles),
	)
	s.publish(Event{Type: EventTrade, Time: trade.Timestamp, Trade: trade, Cycles: cycles})
	return TradeResult{Success: true, Trade: trade, Cycles: cycles}
}

func (s *Session) rejected(dir model.Direction, err error) TradeResult {
	res := TradeResult{Reason: err.Error()}
	if rej, ok := ledger.AsReject(err); ok {
		res.Code = rej.Reason
	}
	metrics.TradeRejections.WithLabelValues(string(res.Code)).Inc()
	slog.Info("trade rejected", "direction", dir, "reason", res.Reason, "code", res.Code)
	return res
}

// SetSpeed changes the clock's speed level.
func (s *Session) SetSpeed(ctx context.Context, speed clock.Speed) error {
	var err error
	if doErr := s.do(ctx, func() { err = s.clock.SetSpeed(speed) }); doErr != nil {
		return doErr
	}
	return err
}

// Stats returns windowed statistics as of the current simulated time.
// Results are cached under the state marker they were computed from; cache
// I/O happens off the owning goroutine. Between markers only the clock moves
// and no field but AsOf depends on it, so a hit is restamped with the
// current time.
func (s *Session) Stats(ctx context.Context, w stats.Window) (*stats.Stats, error) {
	var (
		marker string
		now    time.Time
	)
	if err := s.do(ctx, func() {
		marker = s.rec.Marker()
		now = s.clock.Now()
	}); err != nil {
		return nil, err
	}

	key := store.Key{Window: w, Marker: marker}
	cached, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.StatsCacheRequests.WithLabelValues("error").Inc()
		slog.Warn("stats cache get failed", "key", key.String(), "error", err)
	case ok:
		metrics.StatsCacheRequests.WithLabelValues("hit").Inc()
		cached.AsOf = now
		return cached, nil
	default:
		metrics.StatsCacheRequests.WithLabelValues("miss").Inc()
	}

	var result stats.Stats
	if err := s.do(ctx, func() {
		key.Marker = s.rec.Marker()
		result = s.rec.Compute(s.clock.Now(), w)
	}); err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, key, &result); err != nil {
		slog.Warn("stats cache put failed", "key", key.String(), "error", err)
	}
	return &result, nil
}

// observeMarket and observeDepot refresh gauges; owning goroutine only.
func (s *Session) observeMarket() {
	for _, c := range s.market.Commodities() {
		metrics.CommodityPrice.WithLabelValues(c.Name).Set(c.Price.InexactFloat64())
	}
}

func (s *Session) observeDepot() {
	metrics.DepotCash.Set(s.depot.Cash().InexactFloat64())
	metrics.DepotWealth.Set(s.depot.SnapshotWealth().InexactFloat64())
}

func (s *Session) prices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, c := range s.market.Commodities() {
		out[c.Name] = c.Price
	}
	return out
}

// Step advances the clock by deltaSeconds of real time at the clock's
// current speed level.
func (s *Session) Step(ctx context.Context, deltaSeconds float64) (clock.Tick, error) {
	var (
		tick clock.Tick
		err  error
	)
	if doErr := s.do(ctx, func() {
		tick, err = s.clock.Advance(deltaSeconds, s.clock.Speed())
		if err != nil {
			return
		}
		s.applyTick(tick)
	}); doErr != nil {
		return clock.Tick{}, doErr
	}
	return tick, err
}
