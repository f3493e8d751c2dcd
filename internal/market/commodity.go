// Package market implements the per-commodity stochastic price process.
//
// Each commodity follows a mean-reverting multiplicative random walk that is
// stepped once per simulated hour:
//
//	price' = price × N(μ, σ)
//
// The soft bounds drawn at creation only select the drift regime; they never
// clamp the price. Transcendental math runs in float64 and results are
// immediately converted to decimal, as prices are money.
package market

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidCommodity is returned when a commodity spec cannot produce
	// a valid commodity (empty name, non-positive base price, negative stock).
	ErrInvalidCommodity = errors.New("market: invalid commodity")

	// ErrUnknownCommodity is returned when a lookup names no commodity.
	ErrUnknownCommodity = errors.New("market: unknown commodity")

	// ErrDuplicateCommodity is returned when two specs share a name.
	ErrDuplicateCommodity = errors.New("market: duplicate commodity")

	// PriceScale is the number of decimal places prices are rounded to.
	PriceScale int32 = 8

	// MinPrice is the smallest representable price at PriceScale.
	MinPrice = decimal.New(1, -PriceScale)
)

// Drift regimes of the hourly step.
const (
	upperMu     = 0.999 // above the upper bound: pull down
	lowerMu     = 1.02  // below the lower bound: pull up
	freeMu      = 1.00
	boundSigma  = 0.01
	freeSigma   = 0.10
	subUnitPush = 0.03 // added to μ while price < 1

	// maxRedraws bounds the resampling of a non-positive step factor.
	maxRedraws = 16
)

// Spec describes a commodity at game start.
type Spec struct {
	Name           string          `json:"name"`
	BasePrice      decimal.Decimal `json:"base_price"`
	MarketQuantity int64           `json:"market_quantity"`
	DisplayKey     string          `json:"display_key"` // chart color, e.g. "#987654"
	ShowInCharts   bool            `json:"show_in_charts"`
}

// Commodity holds one good's price, market stock, bounds and history.
// Commodities are created once and never destroyed during a session.
type Commodity struct {
	Name           string
	DisplayKey     string
	Index          int
	ShowInCharts   bool
	BasePrice      decimal.Decimal
	Price          decimal.Decimal
	MarketQuantity int64
	UpperBound     decimal.Decimal
	LowerBound     decimal.Decimal

	// HourlyHistory gets one entry per AdvanceHour, DailyHistory one per
	// SnapshotDaily. Both start with the base price.
	HourlyHistory []decimal.Decimal
	DailyHistory  []decimal.Decimal

	src rand.Source
}

// NewCommodity creates a commodity from spec, drawing its soft price bounds
// from src: upper = base × U(1.5, 3.5), lower = base × U(0.05, 0.80).
func NewCommodity(spec Spec, index int, src rand.Source) (*Commodity, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidCommodity)
	}
	if !spec.BasePrice.IsPositive() {
		return nil, fmt.Errorf("%w: %s base price must be positive", ErrInvalidCommodity, spec.Name)
	}
	if spec.MarketQuantity < 0 {
		return nil, fmt.Errorf("%w: %s market quantity must not be negative", ErrInvalidCommodity, spec.Name)
	}

	base := spec.BasePrice.Round(PriceScale)
	upper := distuv.Uniform{Min: 1.5, Max: 3.5, Src: src}.Rand()
	lower := distuv.Uniform{Min: 0.05, Max: 0.80, Src: src}.Rand()

	return &Commodity{
		Name:           spec.Name,
		DisplayKey:     spec.DisplayKey,
		Index:          index,
		ShowInCharts:   spec.ShowInCharts,
		BasePrice:      base,
		Price:          base,
		MarketQuantity: spec.MarketQuantity,
		UpperBound:     base.Mul(decimal.NewFromFloat(upper)).Round(PriceScale),
		LowerBound:     base.Mul(decimal.NewFromFloat(lower)).Round(PriceScale),
		HourlyHistory:  []decimal.Decimal{base},
		DailyHistory:   []decimal.Decimal{base},
		src:            src,
	}, nil
}

// Drift returns the mean and volatility of the next step factor for a price
// relative to its soft bounds.
func Drift(price, upper, lower float64) (mu, sigma float64) {
	switch {
	case price > upper:
		mu, sigma = upperMu, boundSigma
	case price < lower:
		mu, sigma = lowerMu, boundSigma
	default:
		mu, sigma = freeMu, freeSigma
	}
	// The walk is multiplicative and would otherwise be free to decay
	// toward zero forever.
	if price < 1 {
		mu += subUnitPush
	}
	return mu, sigma
}

// AdvanceHour draws the next price and appends it to the hourly history.
// It returns the new price.
func (c *Commodity) AdvanceHour() decimal.Decimal {
	price := c.Price.InexactFloat64()
	mu, sigma := Drift(price, c.UpperBound.InexactFloat64(), c.LowerBound.InexactFloat64())

	next := decimal.NewFromFloat(price * c.stepFactor(mu, sigma)).Round(PriceScale)
	if !next.IsPositive() {
		next = MinPrice
	}

	c.Price = next
	c.HourlyHistory = append(c.HourlyHistory, next)
	return next
}

// stepFactor samples N(μ, σ), redrawing non-positive factors. After
// maxRedraws failures it falls back to μ, which is always positive.
func (c *Commodity) stepFactor(mu, sigma float64) float64 {
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: c.src}
	for i := 0; i < maxRedraws; i++ {
		if f := dist.Rand(); f > 0 {
			return f
		}
	}
	return mu
}

// SnapshotDaily appends the current price to the daily history.
func (c *Commodity) SnapshotDaily() {
	c.DailyHistory = append(c.DailyHistory, c.Price)
}

// Buy removes qty from the market stock. The caller validates availability.
func (c *Commodity) Buy(qty int64) {
	c.MarketQuantity -= qty
}

// Sell returns qty to the market stock.
func (c *Commodity) Sell(qty int64) {
	c.MarketQuantity += qty
}

// DailyPrice returns the daily snapshot price at index i, clamped to the
// recorded range.
func (c *Commodity) DailyPrice(i int) decimal.Decimal {
	if len(c.DailyHistory) == 0 {
		return c.Price
	}
	if i < 0 {
		i = 0
	}
	if i >= len(c.DailyHistory) {
		i = len(c.DailyHistory) - 1
	}
	return c.DailyHistory[i]
}

// Clone returns a deep copy that shares no slices with c. The copy has no
// random source and must not be stepped.
func (c *Commodity) Clone() *Commodity {
	cp := *c
	cp.HourlyHistory = append([]decimal.Decimal(nil), c.HourlyHistory...)
	cp.DailyHistory = append([]decimal.Decimal(nil), c.DailyHistory...)
	cp.src = nil
	return &cp
}
