package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/merchant-engine/internal/market"
	"github.com/atmx/merchant-engine/internal/model"
)

// match consumes qty units from the front of name's lot queue, recording one
// trade cycle per lot touched. A remainder no lot can cover is an invariant
// violation; it is reported and otherwise ignored.
func (d *Depot) match(name string, qty int64, price decimal.Decimal, ts time.Time) []model.TradeCycle {
	queue := d.lots[name]
	remaining := qty
	var cycles []model.TradeCycle

	for remaining > 0 && len(queue) > 0 {
		lot := &queue[0]
		m := min(lot.Remaining, remaining)

		perUnit := price.Sub(lot.UnitPrice)
		cycle := model.TradeCycle{
			Commodity:     name,
			Quantity:      m,
			BuyPrice:      lot.UnitPrice,
			SellPrice:     price,
			Profit:        perUnit.Mul(decimal.NewFromInt(m)),
			ProfitPerUnit: perUnit,
			Timestamp:     ts,
		}
		cycles = append(cycles, cycle)
		d.record(cycle)

		lot.Remaining -= m
		remaining -= m
		if lot.Remaining == 0 {
			queue = queue[1:]
		}
	}

	if len(queue) == 0 {
		delete(d.lots, name)
	} else {
		d.lots[name] = queue
	}

	if remaining > 0 {
		d.violation(fmt.Sprintf("sale of %d %s left %d units unmatched by lots", qty, name, remaining))
	}
	return cycles
}

// record appends a cycle and folds it into the running aggregates. Best and
// worst start from the first cycle of a commodity, not from zero.
func (d *Depot) record(c model.TradeCycle) {
	d.cycles = append(d.cycles, c)

	success := c.Profit.IsPositive()
	d.totals.Total++
	d.totals.TotalProfit = d.totals.TotalProfit.Add(c.Profit)
	if success {
		d.totals.Successful++
	}

	s, seen := d.byCommodity[c.Commodity]
	if !seen {
		s.BestProfitPerUnit = c.ProfitPerUnit
		s.WorstProfitPerUnit = c.ProfitPerUnit
	}
	s.Total++
	if success {
		s.Successful++
	}
	s.TotalProfit = s.TotalProfit.Add(c.Profit)
	s.AvgProfit = s.TotalProfit.DivRound(decimal.NewFromInt(s.Total), market.PriceScale)
	if c.ProfitPerUnit.GreaterThan(s.BestProfitPerUnit) {
		s.BestProfitPerUnit = c.ProfitPerUnit
	}
	if c.ProfitPerUnit.LessThan(s.WorstProfitPerUnit) {
		s.WorstProfitPerUnit = c.ProfitPerUnit
	}
	d.byCommodity[c.Commodity] = s
}

// violation reports a broken ledger invariant.
func (d *Depot) violation(msg string) {
	slog.Error("ledger invariant violated", "detail", msg)
	if d.cfg.Strict {
		panic("ledger: " + msg)
	}
}

// Verify checks that every commodity's holdings equal the remaining
// quantity of its lots.
func (d *Depot) Verify() error {
	for _, name := range d.names {
		var inLots int64
		for _, lot := range d.lots[name] {
			if lot.Remaining <= 0 || lot.Remaining > lot.Quantity {
				return fmt.Errorf("%w: %s lot %s has remaining %d of %d",
					ErrInconsistent, name, lot.ID, lot.Remaining, lot.Quantity)
			}
			inLots += lot.Remaining
		}
		if inLots != d.holdings[name] {
			return fmt.Errorf("%w: %s holds %d but lots cover %d",
				ErrInconsistent, name, d.holdings[name], inLots)
		}
	}
	return nil
}
