// Package observability exposes the engine's internal operational
// surface: a health/status endpoint plus Prometheus metrics. This is
// not the external REST API the spec excludes — it is the ambient
// plumbing an operator uses to watch one running process.
package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"solana-strategy-engine/internal/health"
)

// Metrics holds every Prometheus collector the engine updates.
type Metrics struct {
	BuysTotal      prometheus.Counter
	SellsTotal     prometheus.Counter
	BuyFailures    prometheus.Counter
	SellFailures   prometheus.Counter
	OpenPositions  prometheus.Gauge
	BundleFlushMs  prometheus.Histogram
	QuoteLatencyMs prometheus.Histogram
	SignLatencyMs  prometheus.Histogram
}

// NewMetrics registers and returns a fresh Metrics set against its own
// registry, so repeated test construction never panics on duplicate
// registration.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		BuysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_buys_total", Help: "Total buy orders submitted.",
		}),
		SellsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_sells_total", Help: "Total sell orders submitted.",
		}),
		BuyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_buy_failures_total", Help: "Buy orders that did not fill.",
		}),
		SellFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_sell_failures_total", Help: "Sell orders that did not fill.",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions", Help: "Currently open (Swapped) positions.",
		}),
		BundleFlushMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "engine_bundle_flush_ms", Help: "Latency of one bundle relay submission.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		QuoteLatencyMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "engine_quote_latency_ms", Help: "Latency of a Jupiter quote request.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		SignLatencyMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "engine_sign_latency_ms", Help: "Latency of transaction signing.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
	registry.MustRegister(
		m.BuysTotal, m.SellsTotal, m.BuyFailures, m.SellFailures,
		m.OpenPositions, m.BundleFlushMs, m.QuoteLatencyMs, m.SignLatencyMs,
	)
	return m
}

// Server exposes /health and /metrics on one fiber app.
type Server struct {
	app     *fiber.App
	addr    string
	checker *health.Checker
}

// NewServer creates a Server bound to addr, backed by registry's
// collectors and checker's component health checks.
func NewServer(addr string, registry *prometheus.Registry, checker *health.Checker) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})

	s := &Server{app: app, addr: addr, checker: checker}
	s.setupRoutes(registry)
	return s
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		statuses := s.checker.GetStatuses()
		healthy := true
		for _, st := range statuses {
			if !st.Healthy {
				healthy = false
				break
			}
		}
		code := fiber.StatusOK
		if !healthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":     healthy,
			"components": statuses,
			"time":       time.Now().Unix(),
		})
	})

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.app.Get("/metrics", adaptor.HTTPHandler(handler))
}

// Start blocks serving on addr.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("observability: starting status/metrics server")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
