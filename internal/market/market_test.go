package market

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func wood() Spec {
	return Spec{Name: "Wood", BasePrice: d(1), MarketQuantity: 5000, DisplayKey: colorPaleBrown}
}

// --- Constructor tests ---

func TestNewCommodity_BoundsWithinRange(t *testing.T) {
	src := rand.NewPCG(1, 2)
	for i := 0; i < 200; i++ {
		c, err := NewCommodity(Spec{Name: "Iron", BasePrice: d(5), MarketQuantity: 900}, 0, src)
		require.NoError(t, err)

		assert.True(t, c.UpperBound.GreaterThanOrEqual(d(7.5)), "upper %s below 1.5x base", c.UpperBound)
		assert.True(t, c.UpperBound.LessThanOrEqual(d(17.5)), "upper %s above 3.5x base", c.UpperBound)
		assert.True(t, c.LowerBound.GreaterThanOrEqual(d(0.25)), "lower %s below 0.05x base", c.LowerBound)
		assert.True(t, c.LowerBound.LessThanOrEqual(d(4)), "lower %s above 0.8x base", c.LowerBound)
	}
}

func TestNewCommodity_SeedsHistories(t *testing.T) {
	c, err := NewCommodity(wood(), 3, rand.NewPCG(1, 2))
	require.NoError(t, err)

	assert.Equal(t, 3, c.Index)
	assert.True(t, c.Price.Equal(d(1)))
	require.Len(t, c.HourlyHistory, 1)
	require.Len(t, c.DailyHistory, 1)
	assert.True(t, c.HourlyHistory[0].Equal(d(1)))
	assert.True(t, c.DailyHistory[0].Equal(d(1)))
}

func TestNewCommodity_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"empty name", Spec{BasePrice: d(1), MarketQuantity: 1}},
		{"zero base", Spec{Name: "Wood", BasePrice: d(0), MarketQuantity: 1}},
		{"negative base", Spec{Name: "Wood", BasePrice: d(-1), MarketQuantity: 1}},
		{"negative quantity", Spec{Name: "Wood", BasePrice: d(1), MarketQuantity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCommodity(tt.spec, 0, rand.NewPCG(1, 2))
			assert.ErrorIs(t, err, ErrInvalidCommodity)
		})
	}
}

// --- Price process tests ---

func TestDrift_Regimes(t *testing.T) {
	tests := []struct {
		name         string
		price        float64
		upper, lower float64
		wantMu       float64
		wantSigma    float64
	}{
		{"above upper", 20, 15, 5, 0.999, 0.01},
		{"below lower", 2, 15, 5, 1.02, 0.01},
		{"inside bounds", 10, 15, 5, 1.00, 0.10},
		{"below lower and below one", 0.5, 15, 5, 1.05, 0.01},
		{"inside bounds and below one", 0.5, 15, 0.1, 1.03, 0.10},
		{"on upper bound is inside", 15, 15, 5, 1.00, 0.10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mu, sigma := Drift(tt.price, tt.upper, tt.lower)
			assert.InDelta(t, tt.wantMu, mu, 1e-12)
			assert.InDelta(t, tt.wantSigma, sigma, 1e-12)
		})
	}
}

func TestAdvanceHour_AppendsHourlyOnly(t *testing.T) {
	c, err := NewCommodity(wood(), 0, rand.NewPCG(7, 7))
	require.NoError(t, err)

	for i := 0; i < 24; i++ {
		p := c.AdvanceHour()
		assert.True(t, p.Equal(c.Price))
	}
	assert.Len(t, c.HourlyHistory, 25)
	assert.Len(t, c.DailyHistory, 1, "hourly steps must not touch daily history")

	c.SnapshotDaily()
	require.Len(t, c.DailyHistory, 2)
	assert.True(t, c.DailyHistory[1].Equal(c.Price))
}

func TestAdvanceHour_PriceStaysPositive(t *testing.T) {
	c, err := NewCommodity(Spec{Name: "Dust", BasePrice: d(0.0001), MarketQuantity: 1}, 0, rand.NewPCG(3, 4))
	require.NoError(t, err)

	for i := 0; i < 20000; i++ {
		require.True(t, c.AdvanceHour().IsPositive(), "step %d produced non-positive price", i)
	}
}

func TestAdvanceHour_BoundsAreNotClamps(t *testing.T) {
	c, err := NewCommodity(wood(), 0, rand.NewPCG(5, 6))
	require.NoError(t, err)

	c.Price = c.UpperBound.Mul(d(10))
	c.AdvanceHour()
	assert.True(t, c.Price.GreaterThan(c.UpperBound), "price %s was clamped to bounds", c.Price)
}

func TestStepFactor_FallsBackToMu(t *testing.T) {
	c, err := NewCommodity(wood(), 0, rand.NewPCG(5, 6))
	require.NoError(t, err)

	// A mean this far below zero never yields a positive draw.
	f := c.stepFactor(-1000, 0.01)
	assert.Equal(t, -1000.0, f)
}

func TestBuySell_AdjustMarketQuantity(t *testing.T) {
	c, err := NewCommodity(wood(), 0, rand.NewPCG(1, 1))
	require.NoError(t, err)

	c.Buy(100)
	assert.Equal(t, int64(4900), c.MarketQuantity)
	c.Sell(40)
	assert.Equal(t, int64(4940), c.MarketQuantity)
}

func TestDailyPrice_Clamped(t *testing.T) {
	c, err := NewCommodity(wood(), 0, rand.NewPCG(1, 1))
	require.NoError(t, err)
	c.Price = d(2)
	c.SnapshotDaily()

	assert.True(t, c.DailyPrice(-5).Equal(d(1)))
	assert.True(t, c.DailyPrice(0).Equal(d(1)))
	assert.True(t, c.DailyPrice(1).Equal(d(2)))
	assert.True(t, c.DailyPrice(99).Equal(d(2)))
}

func TestClone_IsDeep(t *testing.T) {
	c, err := NewCommodity(wood(), 0, rand.NewPCG(1, 1))
	require.NoError(t, err)

	cp := c.Clone()
	c.AdvanceHour()
	c.SnapshotDaily()

	assert.Len(t, cp.HourlyHistory, 1)
	assert.Len(t, cp.DailyHistory, 1)
}

// --- Market tests ---

func TestNewMarket_SameSeedSamePath(t *testing.T) {
	a, err := NewMarket(DefaultCatalog(), 42)
	require.NoError(t, err)
	b, err := NewMarket(DefaultCatalog(), 42)
	require.NoError(t, err)

	for h := 0; h < 500; h++ {
		a.AdvanceHour()
		b.AdvanceHour()
	}
	for i, ca := range a.Commodities() {
		cb := b.Commodities()[i]
		assert.True(t, ca.UpperBound.Equal(cb.UpperBound))
		assert.True(t, ca.Price.Equal(cb.Price), "%s diverged: %s vs %s", ca.Name, ca.Price, cb.Price)
	}
}

func TestNewMarket_DifferentSeedDifferentPath(t *testing.T) {
	a, err := NewMarket(DefaultCatalog(), 1)
	require.NoError(t, err)
	b, err := NewMarket(DefaultCatalog(), 2)
	require.NoError(t, err)

	for h := 0; h < 50; h++ {
		a.AdvanceHour()
		b.AdvanceHour()
	}
	ca, _ := a.Get("Wine")
	cb, _ := b.Get("Wine")
	assert.False(t, ca.Price.Equal(cb.Price))
}

func TestNewMarket_Duplicate(t *testing.T) {
	_, err := NewMarket([]Spec{wood(), wood()}, 1)
	assert.ErrorIs(t, err, ErrDuplicateCommodity)
}

func TestNewMarket_Empty(t *testing.T) {
	_, err := NewMarket(nil, 1)
	assert.ErrorIs(t, err, ErrInvalidCommodity)
}

func TestMarket_GetAndOrder(t *testing.T) {
	m, err := NewMarket(DefaultCatalog(), 42)
	require.NoError(t, err)

	names := m.Names()
	require.Len(t, names, 12)
	assert.Equal(t, "Wood", names[0])
	assert.Equal(t, "Linen", names[11])

	iron, err := m.Get("Iron")
	require.NoError(t, err)
	assert.Equal(t, 2, iron.Index)
	assert.True(t, iron.ShowInCharts)

	_, err = m.Get("Spice")
	assert.ErrorIs(t, err, ErrUnknownCommodity)
}

func TestMarket_SetShowInCharts(t *testing.T) {
	m, err := NewMarket(DefaultCatalog(), 1)
	require.NoError(t, err)
	v := m.Version()

	require.NoError(t, m.SetShowInCharts("Wood", false))
	require.NoError(t, m.SetShowInCharts("Fish", true))

	wood, _ := m.Get("Wood")
	fish, _ := m.Get("Fish")
	assert.False(t, wood.ShowInCharts)
	assert.True(t, fish.ShowInCharts)
	assert.Equal(t, v, m.Version())

	assert.ErrorIs(t, m.SetShowInCharts("Spice", true), ErrUnknownCommodity)
}

func TestMarket_VersionBumps(t *testing.T) {
	m, err := NewMarket(DefaultCatalog(), 42)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), m.Version())
	m.AdvanceHour()
	m.SnapshotDaily()
	assert.Equal(t, uint64(2), m.Version())

	for _, c := range m.Commodities() {
		assert.Len(t, c.HourlyHistory, 2)
		assert.Len(t, c.DailyHistory, 2)
	}
}

// --- Catalog tests ---

func TestDefaultCatalog(t *testing.T) {
	specs := DefaultCatalog()
	require.Len(t, specs, 12)

	byName := make(map[string]Spec)
	for _, s := range specs {
		byName[s.Name] = s
	}
	assert.True(t, byName["Wine"].BasePrice.Equal(d(10)))
	assert.Equal(t, int64(500), byName["Wine"].MarketQuantity)
	assert.Equal(t, int64(5000), byName["Wheat"].MarketQuantity)
	assert.False(t, byName["Fish"].ShowInCharts)
}

func TestParseCatalog_Valid(t *testing.T) {
	specs, err := ParseCatalog("Wood:1:5000:#987654, Salt:2.5:300 ,Fine Cloth:12:40:#ABCDEF")
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, "Wood", specs[0].Name)
	assert.Equal(t, "#987654", specs[0].DisplayKey)
	assert.True(t, specs[1].BasePrice.Equal(d(2.5)))
	assert.Equal(t, int64(300), specs[1].MarketQuantity)
	assert.Equal(t, "", specs[1].DisplayKey)
	assert.Equal(t, "Fine Cloth", specs[2].Name)
	assert.Equal(t, "#abcdef", specs[2].DisplayKey)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []string{
		"",
		"Wood",
		"Wood:1",
		"Wood:-1:10",
		"Wood:0:10",
		"Wood:1:ten",
		"Wood:1:10:red",
		"1Wood:1:10",
	}
	for _, s := range tests {
		_, err := ParseCatalog(s)
		assert.ErrorIs(t, err, ErrInvalidCatalog, "input %q", s)
	}
}
