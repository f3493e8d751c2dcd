package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/merchant-engine/internal/clock"
	"github.com/atmx/merchant-engine/internal/ledger"
	"github.com/atmx/merchant-engine/internal/market"
	"github.com/atmx/merchant-engine/internal/session"
)

func newSession(t *testing.T, speed clock.Speed) *session.Session {
	t.Helper()
	s, err := session.New(session.Config{
		Catalog: market.DefaultCatalog(),
		Seed:    1,
		Ledger:  ledger.Config{StartingCash: decimal.NewFromInt(100), CostOfLiving: decimal.NewFromInt(2)},
		Start:   time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC),
		Speed:   speed,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestRun_AdvancesAndClosesDays(t *testing.T) {
	s := newSession(t, clock.VeryFast)
	e := New(s, 5*time.Millisecond)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		depot, err := s.Depot(context.Background())
		return err == nil && depot.History.Len() >= 3
	}, 5*time.Second, 10*time.Millisecond)

	e.Stop()
	e.Stop()
	require.NoError(t, <-errCh)
}

func TestRun_PausedDoesNotAdvance(t *testing.T) {
	s := newSession(t, clock.Paused)
	e := New(s, 2*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	cv, err := s.Clock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC), cv.Now)
}

// fakeGame records deltas fed by the engine.
type fakeGame struct {
	deltas []float64
	fail   error
}

func (g *fakeGame) Step(_ context.Context, delta float64) (clock.Tick, error) {
	if g.fail != nil {
		return clock.Tick{}, g.fail
	}
	g.deltas = append(g.deltas, delta)
	return clock.Tick{DayChanged: len(g.deltas) == 2}, nil
}

func (g *fakeGame) Depot(context.Context) (session.DepotView, error) {
	return session.DepotView{}, errors.New("no depot")
}

func TestRun_FeedsMeasuredDelta(t *testing.T) {
	g := &fakeGame{}
	e := New(g, time.Millisecond)

	// A fake clock moving 0.5s per reading.
	base := time.Unix(0, 0)
	calls := 0
	e.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 500 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	require.NotEmpty(t, g.deltas)
	for _, d := range g.deltas {
		assert.InDelta(t, 0.5, d, 1e-9)
	}
}

func TestRun_ReturnsStepError(t *testing.T) {
	boom := errors.New("boom")
	e := New(&fakeGame{fail: boom}, time.Millisecond)
	assert.ErrorIs(t, e.Run(context.Background()), boom)
}
