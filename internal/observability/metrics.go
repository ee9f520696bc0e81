// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RecordsCreated *prometheus.CounterVec
	RecordsSkipped *prometheus.CounterVec
	LoadDuration   *prometheus.HistogramVec
	BatchesLoaded  *prometheus.CounterVec

	// Analytics metrics
	ViewsComputed *prometheus.CounterVec
	ViewDuration  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulLoad prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "defi_analytics"
	}

	return &Metrics{
		// Ingestion metrics
		RecordsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_created_total",
			Help:      "Total number of records created by entity type",
		}, []string{"entity"}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_skipped_total",
			Help:      "Total number of records skipped by entity type and reason",
		}, []string{"entity", "reason"}),
		LoadDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "load_duration_seconds",
			Help:      "Batch load duration in seconds by entity type",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"entity"}),
		BatchesLoaded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batches_loaded_total",
			Help:      "Total number of batch files loaded by status",
		}, []string{"entity", "status"}),

		// Analytics metrics
		ViewsComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "views_computed_total",
			Help:      "Total number of analytics views computed by view and branch",
		}, []string{"view", "branch"}),
		ViewDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "view_duration_seconds",
			Help:      "Analytics view computation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulLoad: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_load_timestamp",
			Help:      "Unix timestamp of last successful batch load",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCreated adds to the created counter for an entity type.
func RecordCreated(entity string, n int) {
	DefaultMetrics.RecordsCreated.WithLabelValues(entity).Add(float64(n))
}

// RecordSkipped adds to the skipped counter for an entity type and reason.
func RecordSkipped(entity, reason string, n int) {
	DefaultMetrics.RecordsSkipped.WithLabelValues(entity, reason).Add(float64(n))
}

// RecordLoad records a completed batch load.
func RecordLoad(entity, status string, seconds float64) {
	DefaultMetrics.BatchesLoaded.WithLabelValues(entity, status).Inc()
	DefaultMetrics.LoadDuration.WithLabelValues(entity).Observe(seconds)
}

// RecordView records an analytics view computation and which branch served it.
func RecordView(view, branch string, seconds float64) {
	DefaultMetrics.ViewsComputed.WithLabelValues(view, branch).Inc()
	DefaultMetrics.ViewDuration.WithLabelValues(view).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
