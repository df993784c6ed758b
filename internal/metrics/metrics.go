// Package metrics provides Prometheus metrics for the Moki Tracker application.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moki_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moki_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upstream API Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moki_upstream_requests_total",
			Help: "Requests made to third-party APIs",
		},
		[]string{"source", "result"}, // source: "moralis", "marketplace"; result: "ok", "error", "quota"
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moki_upstream_latency_seconds",
			Help:    "Third-party API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	MoralisQuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moki_moralis_quota_remaining",
			Help: "Remaining Moralis API requests for today",
		},
	)

	// History Metrics
	HistoryFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moki_history_fallbacks_total",
			Help: "History fetches served from stored observations or empty after an upstream failure",
		},
		[]string{"collection", "fallback"}, // fallback: "stored", "empty"
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moki_cache_hits_total",
			Help: "Response cache hit count",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moki_cache_misses_total",
			Help: "Response cache miss count",
		},
		[]string{"backend"},
	)

	// Market Metrics
	FloorPriceRON = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moki_floor_price_ron",
			Help: "Latest observed floor price per collection in RON",
		},
		[]string{"collection"},
	)

	RonPriceUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moki_ron_price_usd",
			Help: "Latest RON/USD price",
		},
	)

	// Portfolio Metrics
	PortfolioValueRON = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moki_portfolio_value_ron",
			Help: "Total estimated value of the tracked wallet in RON",
		},
	)

	PortfolioUnitsByCollection = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moki_portfolio_units",
			Help: "Units held by the tracked wallet per collection",
		},
		[]string{"collection"},
	)

	SnapshotsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moki_snapshots_total",
			Help: "Portfolio value snapshots recorded",
		},
	)

	// Worker Metrics
	FloorObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moki_floor_observations_total",
			Help: "Floor price observations recorded by the floor worker",
		},
		[]string{"collection"},
	)

	WorkerRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moki_worker_run_duration_seconds",
			Help:    "Time taken by one background worker run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)
)
