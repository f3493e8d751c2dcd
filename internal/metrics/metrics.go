// Package metrics provides Prometheus instrumentation for the merchant engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by direction.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merchant_trades_total",
		Help: "Total number of trades executed",
	}, []string{"direction"})

	// TradeRejections counts rejected trades by reason code.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merchant_trade_rejections_total",
		Help: "Trades rejected by ledger validation",
	}, []string{"reason"})

	// TradeVolume tracks cumulative traded units per commodity.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merchant_trade_volume_total",
		Help: "Cumulative traded units",
	}, []string{"commodity", "direction"})

	// TradeCycles counts realized trade cycles by outcome.
	TradeCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merchant_trade_cycles_total",
		Help: "Realized FIFO trade cycles",
	}, []string{"outcome"})

	CommodityPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "merchant_commodity_price",
		Help: "Current commodity price",
	}, []string{"commodity"})

	DepotCash = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "merchant_depot_cash",
		Help: "Depot cash balance",
	})

	DepotWealth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "merchant_depot_wealth",
		Help: "Depot wealth at the last daily snapshot",
	})

	// SimDays counts simulated days closed.
	SimDays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sim_days_total",
		Help: "Simulated days closed",
	})

	// SimHours counts simulated hours, one price step each.
	SimHours = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merchant_sim_hours_total",
		Help: "Simulated hours elapsed",
	})

	// StatsCacheRequests counts stats cache lookups by result (hit|miss|error).
	StatsCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merchant_stats_cache_requests_total",
		Help: "Statistics cache lookups",
	}, []string{"result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "merchant_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merchant_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "merchant_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Label by route pattern, not raw path, to bound cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
