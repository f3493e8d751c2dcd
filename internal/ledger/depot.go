// Package ledger implements the player's depot: cash, holdings, FIFO purchase
// lots, the trade log, realized trade cycles and the daily snapshot arrays.
//
// Every mutation validates first and mutates second, so a rejected trade
// leaves no trace. Cash can go negative only through the daily cost of living.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/merchant-engine/internal/market"
	"github.com/atmx/merchant-engine/internal/model"
)

// Config holds the economic parameters of a depot.
type Config struct {
	StartingCash decimal.Decimal
	CostOfLiving decimal.Decimal

	// Strict turns consistency violations into panics.
	Strict bool
}

// Depot is the ledger of one player. It is not safe for concurrent use.
type Depot struct {
	cfg     Config
	started time.Time

	names    []string
	cash     decimal.Decimal
	holdings map[string]int64
	lots     map[string][]model.Lot

	trades []model.Trade
	cycles []model.TradeCycle

	totals      model.CycleTotals
	byCommodity map[string]model.CommodityCycleStats

	history        model.History
	dayIncome      decimal.Decimal
	dayExpenditure decimal.Decimal

	version uint64
}

// New creates a depot tracking the named commodities. Every history array
// starts with one entry so index i lines up with daily price i, whose first
// entry is the base price.
func New(cfg Config, names []string, started time.Time) *Depot {
	d := &Depot{
		cfg:         cfg,
		started:     started,
		cash:        cfg.StartingCash,
		holdings:    make(map[string]int64, len(names)),
		lots:        make(map[string][]model.Lot, len(names)),
		byCommodity: make(map[string]model.CommodityCycleStats),
		history: model.History{
			Wealth:      []decimal.Decimal{cfg.StartingCash},
			Cash:        []decimal.Decimal{cfg.StartingCash},
			TotalStock:  []int64{0},
			Stock:       make(map[string][]int64, len(names)),
			Income:      []decimal.Decimal{decimal.Zero},
			Expenditure: []decimal.Decimal{decimal.Zero},
		},
	}
	for _, name := range names {
		d.track(name)
	}
	return d
}

// track registers a commodity, padding its stock history with zeros so it
// stays index-aligned with the other arrays.
func (d *Depot) track(name string) {
	if _, ok := d.history.Stock[name]; ok {
		return
	}
	d.names = append(d.names, name)
	d.holdings[name] = 0
	d.history.Stock[name] = make([]int64, d.history.Len())
}

// Buy purchases qty units of c at its current price. Preconditions are
// checked in order: positive quantity, enough cash, enough market stock.
func (d *Depot) Buy(c *market.Commodity, qty int64, ts time.Time) (*model.Trade, error) {
	if qty <= 0 {
		return nil, Reject(ReasonInvalidQuantity, c.Name)
	}
	price := c.Price
	cost := price.Mul(decimal.NewFromInt(qty))
	if d.cash.LessThan(cost) {
		return nil, Reject(ReasonInsufficientFunds, c.Name)
	}
	if c.MarketQuantity < qty {
		return nil, Reject(ReasonMarketShortage, c.Name)
	}

	d.track(c.Name)
	d.cash = d.cash.Sub(cost)
	d.holdings[c.Name] += qty
	d.lots[c.Name] = append(d.lots[c.Name], model.Lot{
		ID:        uuid.NewString(),
		Commodity: c.Name,
		UnitPrice: price,
		Quantity:  qty,
		Remaining: qty,
		TotalCost: cost,
		Timestamp: ts,
	})
	c.Buy(qty)
	d.dayExpenditure = d.dayExpenditure.Add(cost)

	trade := d.appendTrade(c.Name, qty, price, model.Purchase, cost, ts)
	d.version++
	return trade, nil
}

// Sell sells qty units of c at its current price and realizes profit
// against the oldest lots. The sale price never depends on the lot price.
func (d *Depot) Sell(c *market.Commodity, qty int64, ts time.Time) (*model.Trade, []model.TradeCycle, error) {
	if qty <= 0 {
		return nil, nil, Reject(ReasonInvalidQuantity, c.Name)
	}
	held := d.holdings[c.Name]
	if held == 0 {
		return nil, nil, Reject(ReasonNotHeld, c.Name)
	}
	if held < qty {
		return nil, nil, Reject(ReasonInsufficientStock, c.Name)
	}

	price := c.Price
	proceeds := price.Mul(decimal.NewFromInt(qty))

	d.cash = d.cash.Add(proceeds)
	d.holdings[c.Name] -= qty
	c.Sell(qty)
	d.dayIncome = d.dayIncome.Add(proceeds)

	trade := d.appendTrade(c.Name, qty, price, model.Sale, proceeds, ts)
	cycles := d.match(c.Name, qty, price, ts)
	d.version++
	return trade, cycles, nil
}

func (d *Depot) appendTrade(name string, qty int64, price decimal.Decimal, dir model.Direction, total decimal.Decimal, ts time.Time) *model.Trade {
	d.trades = append(d.trades, model.Trade{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Commodity: name,
		Quantity:  qty,
		Price:     price,
		Direction: dir,
		Total:     total,
	})
	t := d.trades[len(d.trades)-1]
	return &t
}

// ApplyDailyCostOfLiving debits the daily cost of living. This is the only
// path that may drive cash below zero.
func (d *Depot) ApplyDailyCostOfLiving() {
	d.cash = d.cash.Sub(d.cfg.CostOfLiving)
	d.version++
}

// Wealth returns cash plus holdings valued at current market prices.
func (d *Depot) Wealth(m *market.Market) decimal.Decimal {
	wealth := d.cash
	for _, name := range d.names {
		qty := d.holdings[name]
		if qty == 0 {
			continue
		}
		c, err := m.Get(name)
		if err != nil {
			continue
		}
		wealth = wealth.Add(c.Price.Mul(decimal.NewFromInt(qty)))
	}
	return wealth
}

// SnapshotDaily appends wealth, cash, stock, income and expenditure to the
// history arrays and resets the day's income and expenditure. It does not
// touch commodity prices; see CloseDay.
func (d *Depot) SnapshotDaily(m *market.Market, ts time.Time) model.DailySnapshot {
	var total int64
	for _, name := range d.names {
		qty := d.holdings[name]
		total += qty
		d.history.Stock[name] = append(d.history.Stock[name], qty)
	}

	snap := model.DailySnapshot{
		Index:       d.history.Len(),
		Timestamp:   ts,
		Wealth:      d.Wealth(m),
		Cash:        d.cash,
		TotalStock:  total,
		Income:      d.dayIncome,
		Expenditure: d.dayExpenditure,
	}
	d.history.Wealth = append(d.history.Wealth, snap.Wealth)
	d.history.Cash = append(d.history.Cash, snap.Cash)
	d.history.TotalStock = append(d.history.TotalStock, total)
	d.history.Income = append(d.history.Income, snap.Income)
	d.history.Expenditure = append(d.history.Expenditure, snap.Expenditure)

	d.dayIncome = decimal.Zero
	d.dayExpenditure = decimal.Zero
	d.version++
	return snap
}

// CloseDay runs the end-of-day routine: cost of living, depot snapshot,
// then the market's daily price snapshot.
func (d *Depot) CloseDay(m *market.Market, ts time.Time) model.DailySnapshot {
	d.ApplyDailyCostOfLiving()
	snap := d.SnapshotDaily(m, ts)
	m.SnapshotDaily()
	return snap
}
