package market

import (
	"fmt"
	"math/rand/v2"
)

// seedStream decorrelates the second PCG word from the seed.
const seedStream = 0x9e3779b97f4a7c15

// Market is the ordered set of commodities traded in a session. It owns the
// single random source all price steps draw from, so one seed reproduces the
// whole price path.
//
// Market is not safe for concurrent use; callers serialize access.
type Market struct {
	commodities []*Commodity
	index       map[string]*Commodity
	version     uint64
	src         rand.Source
}

// NewMarket creates commodities from specs in order, drawing their bounds
// from a PCG source seeded with seed.
func NewMarket(specs []Spec, seed uint64) (*Market, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: empty catalog", ErrInvalidCommodity)
	}

	src := rand.NewPCG(seed, seed^seedStream)
	m := &Market{
		commodities: make([]*Commodity, 0, len(specs)),
		index:       make(map[string]*Commodity, len(specs)),
		src:         src,
	}
	for i, spec := range specs {
		if _, dup := m.index[spec.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommodity, spec.Name)
		}
		c, err := NewCommodity(spec, i, src)
		if err != nil {
			return nil, err
		}
		m.commodities = append(m.commodities, c)
		m.index[c.Name] = c
	}
	return m, nil
}

// Get returns the commodity called name.
func (m *Market) Get(name string) (*Commodity, error) {
	c, ok := m.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommodity, name)
	}
	return c, nil
}

// Commodities returns the live commodities in catalog order. The slice is a
// copy; the commodities are not.
func (m *Market) Commodities() []*Commodity {
	return append([]*Commodity(nil), m.commodities...)
}

// Names returns commodity names in catalog order.
func (m *Market) Names() []string {
	names := make([]string, len(m.commodities))
	for i, c := range m.commodities {
		names[i] = c.Name
	}
	return names
}

// SetShowInCharts selects whether name is drawn in the price charts. Chart
// selection is display state and does not change Version.
func (m *Market) SetShowInCharts(name string, show bool) error {
	c, err := m.Get(name)
	if err != nil {
		return err
	}
	c.ShowInCharts = show
	return nil
}

// AdvanceHour steps every commodity's price once.
func (m *Market) AdvanceHour() {
	for _, c := range m.commodities {
		c.AdvanceHour()
	}
	m.version++
}

// SnapshotDaily records every commodity's current price as its daily price.
func (m *Market) SnapshotDaily() {
	for _, c := range m.commodities {
		c.SnapshotDaily()
	}
	m.version++
}

// Version counts price mutations. Market quantity changes happen through
// trades and are tracked by the ledger's version instead.
func (m *Market) Version() uint64 {
	return m.version
}
