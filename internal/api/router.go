package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/atmx/merchant-engine/internal/metrics"
)

// ServiceName is reported by the health check.
const ServiceName = "merchant-engine"

// NewRouter mounts the service under /api/v1. hub may be nil, in which
// case the WebSocket route is not registered.
func NewRouter(svc *Service, hub *WSHub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The upgrade must not run under the request timeout.
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/commodities", svc.ListCommodities)
			r.Get("/commodities/{name}", svc.GetCommodity)
			r.Put("/commodities/{name}/chart", svc.SetChart)

			r.Post("/trades/buy", svc.Buy)
			r.Post("/trades/sell", svc.Sell)
			r.Get("/trades", svc.ListTrades)
			r.Get("/cycles", svc.ListCycles)

			r.Get("/depot", svc.GetDepot)
			r.Get("/stats", svc.GetStats)

			r.Get("/clock", svc.GetClock)
			r.Put("/clock/speed", svc.SetSpeed)
			r.Post("/clock/advance", svc.AdvanceClock)
		})
	})

	return r
}
