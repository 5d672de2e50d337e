// Package metrics holds the Prometheus collectors shared by the store, the
// change stream and the admin API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all collectors. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Table data operations
	tableOperationsTotal   *prometheus.CounterVec
	tableOperationDuration *prometheus.HistogramVec

	// Registry
	registryOperationsTotal *prometheus.CounterVec
	registryCacheTotal      *prometheus.CounterVec
	tablesCreatedTotal      prometheus.Counter

	// Change stream
	walBatchesTotal      prometheus.Counter
	walUpdatesTotal      *prometheus.CounterVec
	walDecodeErrorsTotal prometheus.Counter
	walLastSequence      prometheus.Gauge

	authRequestsTotal *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablekv_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tablekv_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tablekv_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		tableOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablekv_table_operations_total",
				Help: "Total number of table data operations",
			},
			[]string{"operation", "status"},
		),

		tableOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tablekv_table_operation_duration_seconds",
				Help:    "Table data operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		registryOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablekv_registry_operations_total",
				Help: "Total number of table registry operations",
			},
			[]string{"operation", "status"},
		),

		registryCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablekv_registry_cache_lookups_total",
				Help: "Table handle cache lookups by result",
			},
			[]string{"result"},
		),

		tablesCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tablekv_tables_created_total",
				Help: "Total number of table ids allocated",
			},
		),

		walBatchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tablekv_wal_batches_decoded_total",
				Help: "Total number of WAL batches decoded",
			},
		),

		walUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablekv_wal_updates_decoded_total",
				Help: "Total number of change events decoded from the WAL",
			},
			[]string{"kind"},
		),

		walDecodeErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tablekv_wal_decode_errors_total",
				Help: "Total number of WAL batches that failed to decode",
			},
		),

		walLastSequence: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tablekv_wal_last_sequence",
				Help: "Sequence number of the last decoded WAL batch",
			},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablekv_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),
	}
}

func status(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordTableOperation records a put/get/delete/write/scan against a table
func (m *Metrics) RecordTableOperation(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.tableOperationsTotal.WithLabelValues(operation, status(success)).Inc()
	m.tableOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRegistryOperation records a create/rename/destroy/list/lookup
func (m *Metrics) RecordRegistryOperation(operation string, success bool) {
	if m == nil {
		return
	}
	m.registryOperationsTotal.WithLabelValues(operation, status(success)).Inc()
}

// RecordCacheLookup records a handle cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.registryCacheTotal.WithLabelValues(result).Inc()
}

// RecordTableCreated records one allocated table id
func (m *Metrics) RecordTableCreated() {
	if m == nil {
		return
	}
	m.tablesCreatedTotal.Inc()
}

// RecordWALBatch records one decoded batch and its events by kind
func (m *Metrics) RecordWALBatch(seq uint64, eventsByKind map[string]int) {
	if m == nil {
		return
	}
	m.walBatchesTotal.Inc()
	m.walLastSequence.Set(float64(seq))
	for kind, n := range eventsByKind {
		m.walUpdatesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordWALDecodeError records a batch that could not be decoded
func (m *Metrics) RecordWALDecodeError() {
	if m == nil {
		return
	}
	m.walDecodeErrorsTotal.Inc()
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	if m == nil {
		return
	}
	m.authRequestsTotal.WithLabelValues(status(success)).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Create response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
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
