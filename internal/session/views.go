package session

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/merchant-engine/internal/market"
	"github.com/atmx/merchant-engine/internal/model"
)

// CommodityView is a read-only copy of a commodity. Histories are only
// filled by Session.Commodity.
type CommodityView struct {
	Name           string            `json:"name"`
	Index          int               `json:"index"`
	DisplayKey     string            `json:"display_key"`
	ShowInCharts   bool              `json:"show_in_charts"`
	Price          decimal.Decimal   `json:"price"`
	BasePrice      decimal.Decimal   `json:"base_price"`
	MarketQuantity int64             `json:"market_quantity"`
	UpperBound     decimal.Decimal   `json:"upper_bound"`
	LowerBound     decimal.Decimal   `json:"lower_bound"`
	HourlyHistory  []decimal.Decimal `json:"hourly_history,omitempty"`
	DailyHistory   []decimal.Decimal `json:"daily_history,omitempty"`
}

func viewOf(c *market.Commodity, withHistory bool) CommodityView {
	v := CommodityView{
		Name:           c.Name,
		Index:          c.Index,
		DisplayKey:     c.DisplayKey,
		ShowInCharts:   c.ShowInCharts,
		Price:          c.Price,
		BasePrice:      c.BasePrice,
		MarketQuantity: c.MarketQuantity,
		UpperBound:     c.UpperBound,
		LowerBound:     c.LowerBound,
	}
	if withHistory {
		v.HourlyHistory = slices.Clone(c.HourlyHistory)
		v.DailyHistory = slices.Clone(c.DailyHistory)
	}
	return v
}

// DepotView is a read-only copy of the depot.
type DepotView struct {
	Cash         decimal.Decimal        `json:"cash"`
	Wealth       decimal.Decimal        `json:"wealth"` // live, at current prices
	CostOfLiving decimal.Decimal        `json:"cost_of_living"`
	Holdings     map[string]int64       `json:"holdings"`
	Lots         map[string][]model.Lot `json:"lots"`
	History      model.History          `json:"history"`
	CycleSummary model.CycleSummary     `json:"cycle_summary"`
	TradeCount   int                    `json:"trade_count"`
	LastTrade    *model.Trade           `json:"last_trade,omitempty"`
}

// ClockView is a read-only copy of the clock.
type ClockView struct {
	Now       time.Time     `json:"now"`
	Speed     int           `json:"speed"`
	SpeedName string        `json:"speed_name"`
	Rate      time.Duration `json:"rate"` // simulated time per real second
}

// Commodities returns every commodity in catalog order, without histories.
func (s *Session) Commodities(ctx context.Context) ([]CommodityView, error) {
	var out []CommodityView
	err := s.do(ctx, func() {
		for _, c := range s.market.Commodities() {
			out = append(out, viewOf(c, false))
		}
	})
	return out, err
}

// Commodity returns one commodity with its hourly and daily histories.
func (s *Session) Commodity(ctx context.Context, name string) (CommodityView, error) {
	var (
		v   CommodityView
		err error
	)
	if doErr := s.do(ctx, func() {
		var c *market.Commodity
		c, err = s.market.Get(name)
		if err == nil {
			v = viewOf(c, true)
		}
	}); doErr != nil {
		return CommodityView{}, doErr
	}
	return v, err
}

// SetShowInCharts selects whether a commodity is drawn in the price charts
// and returns its updated view.
func (s *Session) SetShowInCharts(ctx context.Context, name string, show bool) (CommodityView, error) {
	var (
		v   CommodityView
		err error
	)
	if doErr := s.do(ctx, func() {
		if err = s.market.SetShowInCharts(name, show); err != nil {
			return
		}
		c, _ := s.market.Get(name)
		v = viewOf(c, false)
	}); doErr != nil {
		return CommodityView{}, doErr
	}
	return v, err
}

// Depot returns a copy of the depot state.
func (s *Session) Depot(ctx context.Context) (DepotView, error) {
	var v DepotView
	err := s.do(ctx, func() {
		v = DepotView{
			Cash:         s.depot.Cash(),
			Wealth:       s.depot.Wealth(s.market),
			CostOfLiving: s.depot.CostOfLiving(),
			Holdings:     s.depot.Holdings(),
			Lots:         s.depot.AllLots(),
			History:      s.depot.History(),
			CycleSummary: s.depot.CycleSummary(),
		}
		v.TradeCount = s.depot.TradeCount()
		if t, ok := s.depot.LastTrade(); ok {
			v.LastTrade = &t
		}
	})
	return v, err
}

// Trades returns the full trade log, oldest first.
func (s *Session) Trades(ctx context.Context) ([]model.Trade, error) {
	var out []model.Trade
	err := s.do(ctx, func() { out = s.depot.Trades() })
	return out, err
}

// Cycles returns every realized trade cycle and the running aggregates.
func (s *Session) Cycles(ctx context.Context) ([]model.TradeCycle, model.CycleSummary, error) {
	var (
		out     []model.TradeCycle
		summary model.CycleSummary
	)
	err := s.do(ctx, func() {
		out = s.depot.TradeCycles()
		summary = s.depot.CycleSummary()
	})
	return out, summary, err
}

// Clock returns the current simulated time and speed.
func (s *Session) Clock(ctx context.Context) (ClockView, error) {
	var v ClockView
	err := s.do(ctx, func() {
		v = ClockView{
			Now:       s.clock.Now(),
			Speed:     int(s.clock.Speed()),
			SpeedName: s.clock.SpeedName(),
			Rate:      s.clock.Speed().Rate(),
		}
	})
	return v, err
}
