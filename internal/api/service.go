// Package api exposes a game session over HTTP and WebSocket. It is the
// boundary to the rendering client: trades and clock steps come in, and
// read-only views of prices, depot and statistics go out.
//
// All monetary values use shopspring/decimal and are encoded as strings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/merchant-engine/internal/clock"
	"github.com/atmx/merchant-engine/internal/ledger"
	"github.com/atmx/merchant-engine/internal/market"
	"github.com/atmx/merchant-engine/internal/model"
	"github.com/atmx/merchant-engine/internal/session"
	"github.com/atmx/merchant-engine/internal/stats"
)

// Service holds the HTTP handlers of one session.
type Service struct {
	game *session.Session
}

// NewService creates the handlers for game.
func NewService(game *session.Session) *Service {
	return &Service{game: game}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trades/buy and /trades/sell.
type TradeRequest struct {
	Commodity string `json:"commodity"`
	Quantity  int64  `json:"quantity"`
}

// SpeedRequest is the JSON body for PUT /clock/speed.
type SpeedRequest struct {
	Speed int `json:"speed"`
}

// ChartRequest is the JSON body for PUT /commodities/{name}/chart.
type ChartRequest struct {
	Show bool `json:"show"`
}

// AdvanceRequest is the JSON body for POST /clock/advance. A zero speed
// keeps the clock's current level.
type AdvanceRequest struct {
	Seconds float64 `json:"seconds"`
	Speed   int     `json:"speed"`
}

// CyclesResponse is returned from GET /cycles.
type CyclesResponse struct {
	Cycles  []model.TradeCycle `json:"cycles"`
	Summary model.CycleSummary `json:"summary"`
}

// --- HTTP Handlers ---

// ListCommodities handles GET /api/v1/commodities
func (s *Service) ListCommodities(w http.ResponseWriter, r *http.Request) {
	commodities, err := s.game.Commodities(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if commodities == nil {
		commodities = []session.CommodityView{}
	}
	writeJSON(w, http.StatusOK, commodities)
}

// GetCommodity handles GET /api/v1/commodities/{name}
// Includes the hourly and daily price histories for charting.
func (s *Service) GetCommodity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	c, err := s.game.Commodity(r.Context(), name)
	if errors.Is(err, market.ErrUnknownCommodity) {
		writeError(w, "commodity not found: "+name, http.StatusNotFound)
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// SetChart handles PUT /api/v1/commodities/{name}/chart
func (s *Service) SetChart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := s.game.SetShowInCharts(r.Context(), name, req.Show)
	if errors.Is(err, market.ErrUnknownCommodity) {
		writeError(w, "commodity not found: "+name, http.StatusNotFound)
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Buy handles POST /api/v1/trades/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, s.game.Buy)
}

// Sell handles POST /api/v1/trades/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, s.game.Sell)
}

type tradeFunc func(ctx context.Context, name string, qty int64) (session.TradeResult, error)

func (s *Service) trade(w http.ResponseWriter, r *http.Request, exec tradeFunc) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Commodity == "" {
		writeError(w, "commodity is required", http.StatusBadRequest)
		return
	}

	res, err := exec(r.Context(), req.Commodity, req.Quantity)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if !res.Success {
		status := http.StatusConflict
		if res.Code == ledger.ReasonUnknownCommodity {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": res.Reason, "reason": string(res.Code)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListTrades handles GET /api/v1/trades
// Returns the full trade log, oldest first.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.game.Trades(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// ListCycles handles GET /api/v1/cycles
func (s *Service) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, summary, err := s.game.Cycles(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if cycles == nil {
		cycles = []model.TradeCycle{}
	}
	writeJSON(w, http.StatusOK, CyclesResponse{Cycles: cycles, Summary: summary})
}

// GetDepot handles GET /api/v1/depot
func (s *Service) GetDepot(w http.ResponseWriter, r *http.Request) {
	depot, err := s.game.Depot(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, depot)
}

// GetStats handles GET /api/v1/stats?window=daily|weekly|monthly|yearly|total
// The window defaults to daily.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	window := stats.Daily
	if q := r.URL.Query().Get("window"); q != "" {
		parsed, err := stats.ParseWindow(q)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		window = parsed
	}

	st, err := s.game.Stats(r.Context(), window)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetClock handles GET /api/v1/clock
func (s *Service) GetClock(w http.ResponseWriter, r *http.Request) {
	cv, err := s.game.Clock(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cv)
}

// SetSpeed handles PUT /api/v1/clock/speed
func (s *Service) SetSpeed(w http.ResponseWriter, r *http.Request) {
	var req SpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := s.game.SetSpeed(r.Context(), clock.Speed(req.Speed))
	if errors.Is(err, clock.ErrInvalidSpeed) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}

	slog.Info("speed changed", "speed", clock.Speed(req.Speed).String())
	s.GetClock(w, r)
}

// AdvanceClock handles POST /api/v1/clock/advance
// Steps the simulation manually, as one frame of the given real duration.
func (s *Service) AdvanceClock(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var (
		tick clock.Tick
		err  error
	)
	if req.Speed == 0 {
		tick, err = s.game.Step(r.Context(), req.Seconds)
	} else {
		tick, err = s.game.Advance(r.Context(), req.Seconds, clock.Speed(req.Speed))
	}
	if errors.Is(err, clock.ErrInvalidSpeed) || errors.Is(err, clock.ErrNegativeDelta) ||
		errors.Is(err, clock.ErrInvalidDelta) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tick)
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeSessionError maps failures to reach the session.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrClosed):
		writeError(w, "session closed", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, "request canceled", http.StatusServiceUnavailable)
	default:
		slog.Error("session request failed", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}
