// Package stats reconstructs windowed statistics from a depot's daily
// snapshot arrays and trade log. Only the current inventory is stored;
// inventory at the start of a window is rebuilt by replaying trades in
// reverse. The reconstructor never mutates what it reads.
package stats

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/atmx/merchant-engine/internal/ledger"
	"github.com/atmx/merchant-engine/internal/market"
	"github.com/atmx/merchant-engine/internal/model"
)

// rankedGoods is how many commodities the best/worst lists hold.
const rankedGoods = 3

var hundred = decimal.NewFromInt(100)

// Stats is the result of one Compute call.
type Stats struct {
	Window     Window    `json:"window"`
	AsOf       time.Time `json:"as_of"`
	Start      time.Time `json:"start"`
	StartIndex int       `json:"start_index"`

	WealthNow       decimal.Decimal `json:"wealth_now"` // last snapshot
	WealthStart     decimal.Decimal `json:"wealth_start"`
	LiveWealth      decimal.Decimal `json:"live_wealth"` // cash + holdings at current prices
	CashNow         decimal.Decimal `json:"cash_now"`
	CashStart       decimal.Decimal `json:"cash_start"`
	GoodsValueNow   decimal.Decimal `json:"goods_value_now"`
	GoodsValueStart decimal.Decimal `json:"goods_value_start"`
	WealthChange    decimal.Decimal `json:"wealth_change"`
	ProfitMargin    decimal.Decimal `json:"profit_margin"` // percent of WealthStart

	Income     decimal.Decimal `json:"income"`   // sales
	Expenses   decimal.Decimal `json:"expenses"` // purchases
	StockTotal int64           `json:"stock_total"`
	BuyCount   int             `json:"buy_count"`
	SellCount  int             `json:"sell_count"`
	TradeCount int             `json:"trade_count"`

	Cycles      CycleStats       `json:"cycles"`
	Commodities []CommodityStats `json:"commodities"`
	LastTrade   *model.Trade     `json:"last_trade,omitempty"`
}

// Clone returns a copy of s that shares no slices or pointers with it.
func (s *Stats) Clone() *Stats {
	cp := *s
	cp.Commodities = slices.Clone(s.Commodities)
	cp.Cycles.Best = slices.Clone(s.Cycles.Best)
	cp.Cycles.Worst = slices.Clone(s.Cycles.Worst)
	if s.LastTrade != nil {
		lt := *s.LastTrade
		cp.LastTrade = &lt
	}
	return &cp
}

// CycleStats summarizes the trade cycles realized inside a window.
type CycleStats struct {
	Total       int64           `json:"total"`
	Successful  int64           `json:"successful"`
	SuccessRate decimal.Decimal `json:"success_rate"` // percent
	TotalProfit decimal.Decimal `json:"total_profit"`
	Best        []Ranked        `json:"best"`
	Worst       []Ranked        `json:"worst"`
}

// Ranked is a commodity ranked by its mean profit per unit.
type Ranked struct {
	Commodity         string          `json:"commodity"`
	MeanProfitPerUnit decimal.Decimal `json:"mean_profit_per_unit"`
}

// CommodityStats is the per-commodity breakdown of a window.
type CommodityStats struct {
	Name        string          `json:"name"`
	HeldNow     int64           `json:"held_now"`
	HeldStart   int64           `json:"held_start"`
	PriceNow    decimal.Decimal `json:"price_now"`
	PriceStart  decimal.Decimal `json:"price_start"` // daily price at StartIndex
	ValueNow    decimal.Decimal `json:"value_now"`
	ValueStart  decimal.Decimal `json:"value_start"`
	Bought      int64           `json:"bought"`
	Sold        int64           `json:"sold"`
	Spent       decimal.Decimal `json:"spent"`
	Earned      decimal.Decimal `json:"earned"`
	Cycles      int64           `json:"cycles"`
	CycleProfit decimal.Decimal `json:"cycle_profit"`
}

// Reconstructor derives statistics from a depot and its market.
// Callers serialize it against mutations of either.
type Reconstructor struct {
	depot  *ledger.Depot
	market *market.Market
}

func New(depot *ledger.Depot, m *market.Market) *Reconstructor {
	return &Reconstructor{depot: depot, market: m}
}

// Marker identifies the state a result was computed from. It changes on
// every ledger or market mutation.
func (r *Reconstructor) Marker() string {
	return fmt.Sprintf("%d.%d", r.depot.Version(), r.market.Version())
}

// SnapshotIndex returns the snapshot index at the start of window:
// len−1−days, clamped to 0. Total always maps to 0.
func (r *Reconstructor) SnapshotIndex(w Window) int {
	if w.Days() < 0 {
		return 0
	}
	return max(r.depot.HistoryLen()-1-w.Days(), 0)
}

// windowStart returns the instant matching the snapshot at SnapshotIndex.
// When history is shorter than the window, that is the depot's start.
func (r *Reconstructor) windowStart(now time.Time, days int) time.Time {
	if days < 0 || r.depot.HistoryLen()-1-days <= 0 {
		return r.depot.Started()
	}
	return midnight(now).AddDate(0, 0, -days)
}

// InventoryAsOf rebuilds holdings as they were days before now. Zero days
// returns the live inventory.
func (r *Reconstructor) InventoryAsOf(now time.Time, days int) map[string]int64 {
	if days == 0 {
		return r.depot.Holdings()
	}
	return r.InventorySince(r.windowStart(now, days))
}

// InventorySince undoes every trade at or after start, newest first.
// A purchase is undone by subtracting (floored at zero), a sale by adding.
func (r *Reconstructor) InventorySince(start time.Time) map[string]int64 {
	inv := r.depot.Holdings()
	trades := r.depot.Trades()
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.Timestamp.Before(start) {
			break
		}
		switch t.Direction {
		case model.Purchase:
			inv[t.Commodity] = max(inv[t.Commodity]-t.Quantity, 0)
		case model.Sale:
			inv[t.Commodity] += t.Quantity
		}
	}
	return inv
}

// Compute builds the statistics of window as of now.
func (r *Reconstructor) Compute(now time.Time, w Window) Stats {
	hist := r.depot.History()
	last := hist.Len() - 1
	idx := r.SnapshotIndex(w)
	start := r.windowStart(now, w.Days())

	s := Stats{
		Window:      w,
		AsOf:        now,
		Start:       start,
		StartIndex:  idx,
		WealthNow:   hist.Wealth[last],
		WealthStart: hist.Wealth[idx],
		CashNow:     hist.Cash[last],
		CashStart:   hist.Cash[idx],
		LiveWealth:  r.depot.Wealth(r.market),
	}
	s.WealthChange = s.WealthNow.Sub(s.WealthStart)
	if s.WealthStart.IsPositive() {
		s.ProfitMargin = s.WealthChange.Div(s.WealthStart).Mul(hundred).Round(2)
	}

	held := r.depot.Holdings()
	heldStart := r.InventorySince(start)
	perCommodity := make(map[string]*CommodityStats)
	var breakdown []*CommodityStats
	for _, c := range r.market.Commodities() {
		cs := &CommodityStats{
			Name:       c.Name,
			HeldNow:    held[c.Name],
			HeldStart:  heldStart[c.Name],
			PriceNow:   c.Price,
			PriceStart: c.DailyPrice(idx),
		}
		cs.ValueNow = cs.PriceNow.Mul(decimal.NewFromInt(cs.HeldNow))
		cs.ValueStart = cs.PriceStart.Mul(decimal.NewFromInt(cs.HeldStart))
		s.GoodsValueNow = s.GoodsValueNow.Add(cs.ValueNow)
		s.GoodsValueStart = s.GoodsValueStart.Add(cs.ValueStart)
		s.StockTotal += cs.HeldNow
		perCommodity[c.Name] = cs
		breakdown = append(breakdown, cs)
	}

	trades := r.depot.Trades()
	for i := len(trades) - 1; i >= 0 && !trades[i].Timestamp.Before(start); i-- {
		t := trades[i]
		cs := perCommodity[t.Commodity]
		switch t.Direction {
		case model.Purchase:
			s.BuyCount++
			s.Expenses = s.Expenses.Add(t.Total)
			if cs != nil {
				cs.Bought += t.Quantity
				cs.Spent = cs.Spent.Add(t.Total)
			}
		case model.Sale:
			s.SellCount++
			s.Income = s.Income.Add(t.Total)
			if cs != nil {
				cs.Sold += t.Quantity
				cs.Earned = cs.Earned.Add(t.Total)
			}
		}
	}
	s.TradeCount = s.BuyCount + s.SellCount
	if n := len(trades); n > 0 {
		lt := trades[n-1]
		s.LastTrade = &lt
	}

	s.Cycles = r.cycleStats(start, perCommodity)

	s.Commodities = make([]CommodityStats, len(breakdown))
	for i, cs := range breakdown {
		s.Commodities[i] = *cs
	}
	return s
}

// cycleStats aggregates the trade cycles realized at or after start and
// ranks commodities by mean profit per unit, unweighted by volume.
func (r *Reconstructor) cycleStats(start time.Time, perCommodity map[string]*CommodityStats) CycleStats {
	var cs CycleStats
	perUnit := make(map[string][]float64)

	for _, c := range r.depot.TradeCycles() {
		if c.Timestamp.Before(start) {
			continue
		}
		cs.Total++
		if c.Profit.IsPositive() {
			cs.Successful++
		}
		cs.TotalProfit = cs.TotalProfit.Add(c.Profit)
		perUnit[c.Commodity] = append(perUnit[c.Commodity], c.ProfitPerUnit.InexactFloat64())
		if pc := perCommodity[c.Commodity]; pc != nil {
			pc.Cycles++
			pc.CycleProfit = pc.CycleProfit.Add(c.Profit)
		}
	}
	if cs.Total > 0 {
		cs.SuccessRate = decimal.NewFromInt(cs.Successful).
			Mul(hundred).
			DivRound(decimal.NewFromInt(cs.Total), 2)
	}

	ranked := make([]Ranked, 0, len(perUnit))
	for name, values := range perUnit {
		ranked = append(ranked, Ranked{
			Commodity:         name,
			MeanProfitPerUnit: decimal.NewFromFloat(stat.Mean(values, nil)).Round(market.PriceScale),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if cmp := ranked[i].MeanProfitPerUnit.Cmp(ranked[j].MeanProfitPerUnit); cmp != 0 {
			return cmp > 0
		}
		return ranked[i].Commodity < ranked[j].Commodity
	})

	n := min(len(ranked), rankedGoods)
	cs.Best = append([]Ranked{}, ranked[:n]...)
	cs.Worst = make([]Ranked, 0, n)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		cs.Worst = append(cs.Worst, ranked[i])
	}
	return cs
}
