package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Access-control metrics
	MutationsTotal        *prometheus.CounterVec
	AggregationDuration   *prometheus.HistogramVec
	ConsistencyViolations prometheus.Gauge

	// Snapshot metrics
	SnapshotOperationsTotal   *prometheus.CounterVec
	SnapshotOperationDuration *prometheus.HistogramVec
	SnapshotLastSuccess       *prometheus.GaugeVec

	// Business metrics
	RolesTotal  prometheus.Gauge
	GroupsTotal prometheus.Gauge
	UsersTotal  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_access_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_access_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_access_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_access_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Access-control metrics
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_access_mutations_total",
				Help: "Total number of role, group and user mutations",
			},
			[]string{"operation", "status"},
		),
		AggregationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_access_aggregation_duration_seconds",
				Help:    "Time spent computing group or user permissions",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
			[]string{"kind"},
		),
		ConsistencyViolations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinic_access_consistency_violations",
				Help: "Role ownership violations found by the last consistency check",
			},
		),

		// Snapshot metrics
		SnapshotOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_access_snapshot_operations_total",
				Help: "Total number of snapshot save and load operations",
			},
			[]string{"operation", "backend", "status"},
		),
		SnapshotOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_access_snapshot_operation_duration_seconds",
				Help:    "Snapshot operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		SnapshotLastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clinic_access_snapshot_last_success_timestamp_seconds",
				Help: "Unix time of the last successful snapshot operation",
			},
			[]string{"operation", "backend"},
		),

		// Business metrics
		RolesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinic_access_roles_total",
				Help: "Total number of roles",
			},
		),
		GroupsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinic_access_groups_total",
				Help: "Total number of user groups",
			},
		),
		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinic_access_users_total",
				Help: "Total number of users",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.MutationsTotal,
		m.AggregationDuration,
		m.ConsistencyViolations,
		m.SnapshotOperationsTotal,
		m.SnapshotOperationDuration,
		m.SnapshotLastSuccess,
		m.RolesTotal,
		m.GroupsTotal,
		m.UsersTotal,
	)

	return m
}

// RecordMutation counts a mutation by operation and outcome
func (m *Metrics) RecordMutation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.MutationsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveAggregation records how long a permission computation took
func (m *Metrics) ObserveAggregation(kind string, start time.Time) {
	m.AggregationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// SetEntityCounts updates the role, group and user gauges
func (m *Metrics) SetEntityCounts(roles, groups, users int) {
	m.RolesTotal.Set(float64(roles))
	m.GroupsTotal.Set(float64(groups))
	m.UsersTotal.Set(float64(users))
}

// RecordSnapshot records a snapshot operation against a backend
func (m *Metrics) RecordSnapshot(operation, backend string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	} else {
		m.SnapshotLastSuccess.WithLabelValues(operation, backend).SetToCurrentTime()
	}
	m.SnapshotOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.SnapshotOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the mux route template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
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

			path := routeLabel(r)
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
