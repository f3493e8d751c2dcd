package ledger

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/merchant-engine/internal/model"
)

// Read accessors return copies; callers may keep or modify them freely.

func (d *Depot) Cash() decimal.Decimal { return d.cash }

func (d *Depot) Started() time.Time { return d.started }

// Version increments on every mutation.
func (d *Depot) Version() uint64 { return d.version }

func (d *Depot) CostOfLiving() decimal.Decimal { return d.cfg.CostOfLiving }

// Names returns the tracked commodities in registration order.
func (d *Depot) Names() []string { return slices.Clone(d.names) }

// Holding returns the units held of one commodity.
func (d *Depot) Holding(name string) int64 { return d.holdings[name] }

func (d *Depot) Holdings() map[string]int64 { return maps.Clone(d.holdings) }

// Lots returns name's open lots, oldest first.
func (d *Depot) Lots(name string) []model.Lot { return slices.Clone(d.lots[name]) }

// AllLots returns every open lot queue keyed by commodity.
func (d *Depot) AllLots() map[string][]model.Lot {
	out := make(map[string][]model.Lot, len(d.lots))
	for name, q := range d.lots {
		out[name] = slices.Clone(q)
	}
	return out
}

func (d *Depot) Trades() []model.Trade { return slices.Clone(d.trades) }

func (d *Depot) TradeCycles() []model.TradeCycle { return slices.Clone(d.cycles) }

// LastTrade returns the most recent trade, if any.
func (d *Depot) LastTrade() (model.Trade, bool) {
	if len(d.trades) == 0 {
		return model.Trade{}, false
	}
	return d.trades[len(d.trades)-1], true
}

func (d *Depot) CycleSummary() model.CycleSummary {
	return model.CycleSummary{
		Totals:      d.totals,
		ByCommodity: maps.Clone(d.byCommodity),
	}
}

// History returns a deep copy of the daily snapshot arrays.
func (d *Depot) History() model.History {
	h := model.History{
		Wealth:      slices.Clone(d.history.Wealth),
		Cash:        slices.Clone(d.history.Cash),
		TotalStock:  slices.Clone(d.history.TotalStock),
		Stock:       make(map[string][]int64, len(d.history.Stock)),
		Income:      slices.Clone(d.history.Income),
		Expenditure: slices.Clone(d.history.Expenditure),
	}
	for name, s := range d.history.Stock {
		h.Stock[name] = slices.Clone(s)
	}
	return h
}

// HistoryLen returns the number of daily snapshots without copying them.
func (d *Depot) HistoryLen() int { return d.history.Len() }

// SnapshotWealth returns the wealth recorded by the latest daily snapshot.
func (d *Depot) SnapshotWealth() decimal.Decimal {
	return d.history.Wealth[len(d.history.Wealth)-1]
}

func (d *Depot) TradeCount() int { return len(d.trades) }
