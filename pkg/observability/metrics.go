package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Reconciliation metrics
	ReconcileRunsTotal  *prometheus.CounterVec
	ReconcileDuration   prometheus.Histogram
	RowsSeededTotal     prometheus.Counter
	RowsPrunedTotal     prometheus.Counter
	PatchesAppliedTotal prometheus.Counter
	TogglesTotal        *prometheus.CounterVec

	// Gate metrics
	GateDecisionsTotal   *prometheus.CounterVec
	GateCacheHitsTotal   prometheus.Counter
	GateCacheMissesTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kardex_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kardex_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kardex_reconcile_runs_total",
				Help: "Total number of role reconciliation runs",
			},
			[]string{"outcome"},
		),
		ReconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kardex_reconcile_duration_seconds",
				Help:    "Duration of one role reconciliation, lock wait included",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		RowsSeededTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kardex_permission_rows_seeded_total",
				Help: "Permission rows inserted for new catalog codes",
			},
		),
		RowsPrunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kardex_permission_rows_pruned_total",
				Help: "Permission rows deleted for codes that left the catalog",
			},
		),
		PatchesAppliedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kardex_permission_patches_applied_total",
				Help: "Row patches written by the rule normalizer",
			},
		),
		TogglesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kardex_permission_toggles_total",
				Help: "Single-operation access toggles",
			},
			[]string{"outcome"},
		),

		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kardex_gate_decisions_total",
				Help: "Authorization gate decisions",
			},
			[]string{"mode", "decision"},
		),
		GateCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kardex_gate_cache_hits_total",
				Help: "Gate decision cache hits",
			},
		),
		GateCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kardex_gate_cache_misses_total",
				Help: "Gate decision cache misses",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kardex_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kardex_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReconcileRunsTotal,
		m.ReconcileDuration,
		m.RowsSeededTotal,
		m.RowsPrunedTotal,
		m.PatchesAppliedTotal,
		m.TogglesTotal,
		m.GateDecisionsTotal,
		m.GateCacheHitsTotal,
		m.GateCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// ObserveDBPool periodically copies database pool statistics into the gauges
// until stop is closed. Call it in a goroutine from main.
func (m *Metrics) ObserveDBPool(db *sql.DB, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			m.DBConnectionsActive.Set(float64(stats.InUse))
			m.DBConnectionsIdle.Set(float64(stats.Idle))
		case <-stop:
			return
		}
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
