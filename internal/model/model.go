// Package model defines the core domain types shared across the merchant engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction says which way goods moved in a trade.
type Direction string

const (
	Purchase Direction = "purchase"
	Sale     Direction = "sale"
)

// Trade is an immutable record of a buy or sell against the market.
// Once appended to the trade log it is never modified or deleted.
type Trade struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"` // simulated time
	Commodity string          `json:"commodity"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // unit price at execution
	Direction Direction       `json:"direction"`
	Total     decimal.Decimal `json:"total"` // price × quantity
}

// Lot is one open purchase waiting in a commodity's FIFO queue.
// Remaining never exceeds Quantity; the lot leaves the queue at zero.
type Lot struct {
	ID        string          `json:"id"`
	Commodity string          `json:"commodity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`  // originally bought
	Remaining int64           `json:"remaining"` // not yet matched by sales
	TotalCost decimal.Decimal `json:"total_cost"`
	Timestamp time.Time       `json:"timestamp"`
}

// TradeCycle is the realized result of matching part of a sale against one lot.
// A sale spanning two lots produces two cycles.
type TradeCycle struct {
	Commodity     string          `json:"commodity"`
	Quantity      int64           `json:"quantity"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Profit        decimal.Decimal `json:"profit"`          // (sell − buy) × quantity
	ProfitPerUnit decimal.Decimal `json:"profit_per_unit"` // profit / quantity
	Timestamp     time.Time       `json:"timestamp"`
}

// CycleTotals are the running trade-cycle aggregates across all commodities.
type CycleTotals struct {
	Total       int64           `json:"total"`
	Successful  int64           `json:"successful"` // profit > 0
	TotalProfit decimal.Decimal `json:"total_profit"`
}

// CommodityCycleStats are the running trade-cycle aggregates of one commodity.
// Best and worst compare profit per unit and are only meaningful once Total > 0.
type CommodityCycleStats struct {
	Total              int64           `json:"total"`
	Successful         int64           `json:"successful"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
	AvgProfit          decimal.Decimal `json:"avg_profit"` // total profit / total cycles
	BestProfitPerUnit  decimal.Decimal `json:"best_profit_per_unit"`
	WorstProfitPerUnit decimal.Decimal `json:"worst_profit_per_unit"`
}

// CycleSummary bundles global and per-commodity cycle aggregates.
type CycleSummary struct {
	Totals      CycleTotals                    `json:"totals"`
	ByCommodity map[string]CommodityCycleStats `json:"by_commodity"`
}

// History holds the daily snapshot arrays of a depot. Every slice is
// index-aligned: entry i of each array was written by the same snapshot.
type History struct {
	Wealth      []decimal.Decimal  `json:"wealth"`
	Cash        []decimal.Decimal  `json:"cash"`
	TotalStock  []int64            `json:"total_stock"`
	Stock       map[string][]int64 `json:"stock"`
	Income      []decimal.Decimal  `json:"income"`
	Expenditure []decimal.Decimal  `json:"expenditure"`
}

// Len returns the number of snapshots recorded.
func (h History) Len() int {
	return len(h.Wealth)
}

// DailySnapshot is one row of the History arrays, returned when a day closes.
type DailySnapshot struct {
	Index       int             `json:"index"`
	Timestamp   time.Time       `json:"timestamp"`
	Wealth      decimal.Decimal `json:"wealth"`
	Cash        decimal.Decimal `json:"cash"`
	TotalStock  int64           `json:"total_stock"`
	Income      decimal.Decimal `json:"income"`
	Expenditure decimal.Decimal `json:"expenditure"`
}
