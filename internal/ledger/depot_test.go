package ledger

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/merchant-engine/internal/market"
	"github.com/atmx/merchant-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var t0 = time.Date(1500, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestDepot(t *testing.T, cash float64) (*Depot, *market.Market) {
	t.Helper()
	m, err := market.NewMarket([]market.Spec{
		{Name: "Wood", BasePrice: d(1), MarketQuantity: 5000},
		{Name: "Iron", BasePrice: d(5), MarketQuantity: 900},
	}, 1)
	require.NoError(t, err)
	return New(Config{StartingCash: d(cash), CostOfLiving: d(2)}, m.Names(), t0), m
}

func commodity(t *testing.T, m *market.Market, name string, price float64) *market.Commodity {
	t.Helper()
	c, err := m.Get(name)
	require.NoError(t, err)
	c.Price = d(price)
	return c
}

func assertDec(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want %v got %s", want, got)
}

// --- Buy/Sell scenarios ---

func TestBuySell_SingleLotProfit(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 1.0)

	trade, err := dep.Buy(wood, 10, t0)
	require.NoError(t, err)
	assert.Equal(t, model.Purchase, trade.Direction)
	assertDec(t, 10, trade.Total)
	assertDec(t, 90, dep.Cash())
	require.Len(t, dep.Lots("Wood"), 1)
	assertDec(t, 1, dep.Lots("Wood")[0].UnitPrice)
	assert.Equal(t, int64(4990), wood.MarketQuantity)

	wood.Price = d(1.5)
	trade, cycles, err := dep.Sell(wood, 10, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.Sale, trade.Direction)
	assertDec(t, 105, dep.Cash())
	require.Len(t, cycles, 1)
	assertDec(t, 5, cycles[0].Profit)
	assertDec(t, 0.5, cycles[0].ProfitPerUnit)
	assert.Empty(t, dep.Lots("Wood"))
	assert.Equal(t, int64(0), dep.Holding("Wood"))
	assert.Equal(t, int64(5000), wood.MarketQuantity)
}

func TestSell_SpansLotsFIFO(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 1.0)

	_, err := dep.Buy(wood, 5, t0)
	require.NoError(t, err)
	wood.Price = d(2.0)
	_, err = dep.Buy(wood, 5, t0.Add(time.Hour))
	require.NoError(t, err)

	wood.Price = d(3.0)
	_, cycles, err := dep.Sell(wood, 7, t0.Add(2*time.Hour))
	require.NoError(t, err)

	require.Len(t, cycles, 2)
	assert.Equal(t, int64(5), cycles[0].Quantity)
	assertDec(t, 1, cycles[0].BuyPrice)
	assertDec(t, 10, cycles[0].Profit)
	assert.Equal(t, int64(2), cycles[1].Quantity)
	assertDec(t, 2, cycles[1].BuyPrice)
	assertDec(t, 2, cycles[1].Profit)

	lots := dep.Lots("Wood")
	require.Len(t, lots, 1)
	assertDec(t, 2, lots[0].UnitPrice)
	assert.Equal(t, int64(3), lots[0].Remaining)
	assert.Equal(t, int64(5), lots[0].Quantity)

	summary := dep.CycleSummary()
	assert.Equal(t, int64(2), summary.Totals.Total)
	assert.Equal(t, int64(2), summary.Totals.Successful)
	assertDec(t, 12, summary.Totals.TotalProfit)
	assertDec(t, 6, summary.ByCommodity["Wood"].AvgProfit)
	assertDec(t, 2, summary.ByCommodity["Wood"].BestProfitPerUnit)
	assertDec(t, 1, summary.ByCommodity["Wood"].WorstProfitPerUnit)
	require.NoError(t, dep.Verify())
}

func TestBuy_NotEnoughMoney(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 3.0)

	_, err := dep.Buy(wood, 50, t0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "not enough money", err.Error())
	assertDec(t, 100, dep.Cash())
	assert.Empty(t, dep.Trades())
}

func TestCostOfLiving_DrivesCashNegative(t *testing.T) {
	dep, m := newTestDepot(t, 1)
	wood := commodity(t, m, "Wood", 0.01)

	dep.ApplyDailyCostOfLiving()
	assertDec(t, -1, dep.Cash())

	_, err := dep.Buy(wood, 1, t0)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assertDec(t, -1, dep.Cash()) // not clamped
}

func TestBuy_MarketCannotFulfill(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 0.001)

	_, err := dep.Buy(wood, 6000, t0)
	assert.ErrorIs(t, err, ErrMarketShortage)
	assert.Equal(t, "market cannot fulfill order", err.Error())
	assert.Equal(t, int64(5000), wood.MarketQuantity)
}

func TestBuy_PreconditionOrder(t *testing.T) {
	dep, m := newTestDepot(t, 1)
	wood := commodity(t, m, "Wood", 1.0)

	// Both cash and market stock are short; cash is checked first.
	_, err := dep.Buy(wood, 6000, t0)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = dep.Buy(wood, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSell_Rejections(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 1.0)
	iron := commodity(t, m, "Iron", 5.0)

	_, _, err := dep.Sell(iron, 1, t0)
	assert.ErrorIs(t, err, ErrNotHeld)
	assert.Equal(t, "no Iron in stock", err.Error())

	_, err = dep.Buy(wood, 3, t0)
	require.NoError(t, err)

	_, _, err = dep.Sell(wood, 4, t0)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, "not enough Wood in stock", err.Error())

	_, _, err = dep.Sell(wood, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, _, err = dep.Sell(wood, -2, t0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	rej, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, ReasonInvalidQuantity, rej.Reason)
}

func TestRejectError_UnknownCommodity(t *testing.T) {
	err := error(Reject(ReasonUnknownCommodity, "Spice"))
	assert.True(t, errors.Is(err, market.ErrUnknownCommodity))
	assert.False(t, errors.Is(err, ErrNotHeld))
	assert.Equal(t, "unknown commodity Spice", err.Error())
}

// depotState captures everything a rejected trade must leave untouched.
type depotState struct {
	cash     decimal.Decimal
	holdings map[string]int64
	lots     map[string][]model.Lot
	trades   []model.Trade
	cycles   []model.TradeCycle
	history  model.History
	version  uint64
}

func capture(dep *Depot) depotState {
	return depotState{
		cash:     dep.Cash(),
		holdings: dep.Holdings(),
		lots:     dep.AllLots(),
		trades:   dep.Trades(),
		cycles:   dep.TradeCycles(),
		history:  dep.History(),
		version:  dep.Version(),
	}
}

func TestRejection_IsAtomic(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 2.0)
	iron := commodity(t, m, "Iron", 5.0)

	_, err := dep.Buy(wood, 10, t0)
	require.NoError(t, err)
	_, err = dep.Buy(wood, 5, t0)
	require.NoError(t, err)

	before := capture(dep)
	woodQty, ironQty := wood.MarketQuantity, iron.MarketQuantity

	attempts := []func() error{
		func() error { _, err := dep.Buy(iron, 1000, t0); return err },
		func() error { _, err := dep.Buy(wood, 0, t0); return err },
		func() error { _, _, err := dep.Sell(wood, 16, t0); return err },
		func() error { _, _, err := dep.Sell(iron, 1, t0); return err },
	}
	for i, attempt := range attempts {
		require.Error(t, attempt(), "attempt %d", i)
		assert.Equal(t, before, capture(dep), "attempt %d mutated the depot", i)
		assert.Equal(t, woodQty, wood.MarketQuantity)
		assert.Equal(t, ironQty, iron.MarketQuantity)
	}
}

func TestCycleStats_BestWorstStartFromFirstCycle(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 5.0)

	_, err := dep.Buy(wood, 4, t0)
	require.NoError(t, err)

	wood.Price = d(4.0)
	_, _, err = dep.Sell(wood, 2, t0)
	require.NoError(t, err)
	wood.Price = d(3.0)
	_, _, err = dep.Sell(wood, 2, t0)
	require.NoError(t, err)

	s := dep.CycleSummary().ByCommodity["Wood"]
	assert.Equal(t, int64(2), s.Total)
	assert.Equal(t, int64(0), s.Successful)
	assertDec(t, -1, s.BestProfitPerUnit) // not zero
	assertDec(t, -2, s.WorstProfitPerUnit)
	assertDec(t, -3, s.AvgProfit)
}

func TestSell_UnmatchedRemainder(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 1.0)
	_, err := dep.Buy(wood, 5, t0)
	require.NoError(t, err)

	// Corrupt the lot queue behind the ledger's back.
	dep.lots["Wood"][0].Remaining = 2
	require.ErrorIs(t, dep.Verify(), ErrInconsistent)

	_, cycles, err := dep.Sell(wood, 5, t0)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, int64(2), cycles[0].Quantity)

	dep.cfg.Strict = true
	_, err = dep.Buy(wood, 1, t0)
	require.NoError(t, err)
	dep.lots["Wood"] = nil
	assert.Panics(t, func() { _, _, _ = dep.Sell(wood, 1, t0) })
}

// --- Daily snapshots ---

func TestCloseDay_Order(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	wood := commodity(t, m, "Wood", 2.0)

	_, err := dep.Buy(wood, 10, t0)
	require.NoError(t, err)
	wood.Price = d(3.0)
	_, _, err = dep.Sell(wood, 4, t0)
	require.NoError(t, err)

	snap := dep.CloseDay(m, t0.AddDate(0, 0, 1))

	// 100 - 20 + 12 - 2 cost of living, plus 6 Wood at 3.
	assertDec(t, 90, snap.Cash)
	assertDec(t, 108, snap.Wealth)
	assert.Equal(t, int64(6), snap.TotalStock)
	assertDec(t, 12, snap.Income)
	assertDec(t, 20, snap.Expenditure)
	assert.Equal(t, 1, snap.Index)

	h := dep.History()
	require.Equal(t, 2, h.Len())
	assert.Equal(t, []int64{0, 6}, h.Stock["Wood"])
	assert.Equal(t, []int64{0, 0}, h.Stock["Iron"])
	assertDec(t, 3, wood.DailyHistory[1])

	// Income and expenditure reset for the next day.
	snap = dep.CloseDay(m, t0.AddDate(0, 0, 2))
	assert.True(t, snap.Income.IsZero())
	assert.True(t, snap.Expenditure.IsZero())
}

// Random trading over many days never drives cash negative through trades
// and keeps every snapshot equal to cash plus stock at that day's prices.
func TestConservation_RandomTrading(t *testing.T) {
	m, err := market.NewMarket(market.DefaultCatalog(), 99)
	require.NoError(t, err)
	dep := New(Config{StartingCash: d(100), CostOfLiving: d(0)}, m.Names(), t0)
	rng := rand.New(rand.NewPCG(11, 12))
	names := m.Names()

	ts := t0
	for day := 0; day < 60; day++ {
		for hour := 0; hour < 24; hour++ {
			m.AdvanceHour()
			ts = ts.Add(time.Hour)

			c, err := m.Get(names[rng.IntN(len(names))])
			require.NoError(t, err)
			qty := int64(rng.IntN(20) + 1)
			if rng.IntN(2) == 0 {
				_, _ = dep.Buy(c, qty, ts)
			} else {
				_, _, _ = dep.Sell(c, qty, ts)
			}
			require.False(t, dep.Cash().IsNegative(), "trade drove cash to %s", dep.Cash())
		}
		dep.CloseDay(m, ts)
		require.NoError(t, dep.Verify())
	}

	h := dep.History()
	for i := 0; i < h.Len(); i++ {
		want := h.Cash[i]
		for _, c := range m.Commodities() {
			want = want.Add(decimal.NewFromInt(h.Stock[c.Name][i]).Mul(c.DailyHistory[i]))
		}
		assert.True(t, want.Equal(h.Wealth[i]), "index %d: wealth %s != %s", i, h.Wealth[i], want)
	}
}

func TestTrack_PadsLateCommodity(t *testing.T) {
	m, err := market.NewMarket([]market.Spec{{Name: "Salt", BasePrice: d(1), MarketQuantity: 10}}, 1)
	require.NoError(t, err)
	dep := New(Config{StartingCash: d(10)}, nil, t0)
	dep.CloseDay(m, t0)

	salt, _ := m.Get("Salt")
	_, err = dep.Buy(salt, 2, t0)
	require.NoError(t, err)
	dep.CloseDay(m, t0)

	assert.Equal(t, []int64{0, 0, 2}, dep.History().Stock["Salt"])
}

func TestLastTradeAndCopies(t *testing.T) {
	dep, m := newTestDepot(t, 100)
	_, ok := dep.LastTrade()
	assert.False(t, ok)

	wood := commodity(t, m, "Wood", 1.0)
	_, err := dep.Buy(wood, 1, t0)
	require.NoError(t, err)
	last, ok := dep.LastTrade()
	require.True(t, ok)
	assert.Equal(t, "Wood", last.Commodity)

	trades := dep.Trades()
	trades[0].Quantity = 99
	assert.Equal(t, int64(1), dep.Trades()[0].Quantity)

	lots := dep.Lots("Wood")
	lots[0].Remaining = 0
	require.NoError(t, dep.Verify())
}
