package observability

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unknownOrigin is the label value used before the origin selector has
// run for a request. Origin labels are bounded: docs, api, frontend,
// and this sentinel.
const unknownOrigin = "unknown"

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	activeRequests   *prometheus.GaugeVec
	upstreamErrors   *prometheus.CounterVec
	websocketActive  *prometheus.GaugeVec
	websocketRelayed *prometheus.CounterVec
	buildInfo        *prometheus.GaugeVec
	startTime        prometheus.Gauge
	registry         *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "edge"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of forwarded HTTP requests",
		},
		[]string{"method", "origin", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "origin", "status"},
	)

	m.activeRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
		[]string{"method"},
	)

	m.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of failed outbound requests",
		},
		[]string{"origin"},
	)

	m.websocketActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_active_connections",
			Help:      "Number of active WebSocket relays",
		},
		[]string{"origin"},
	)

	m.websocketRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_total",
			Help:      "Total number of relayed WebSocket messages",
		},
		[]string{"origin", "direction"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the gateway",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the gateway in unix seconds",
		},
	)

	m.registerCollectors()

	m.startTime.SetToCurrentTime()

	return m
}

// registerCollectors registers all metric collectors with the
// Prometheus registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.upstreamErrors,
		m.websocketActive,
		m.websocketRelayed,
		m.buildInfo,
		m.startTime,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(
	method, origin string,
	status int,
	duration time.Duration,
) {
	statusStr := strconv.Itoa(status)

	m.requestsTotal.WithLabelValues(method, origin, statusStr).Inc()
	m.requestDuration.WithLabelValues(method, origin, statusStr).
		Observe(duration.Seconds())
}

// RecordUpstreamError records a failed outbound request.
func (m *Metrics) RecordUpstreamError(origin string) {
	m.upstreamErrors.WithLabelValues(origin).Inc()
}

// WebSocketOpened increments the active WebSocket gauge.
func (m *Metrics) WebSocketOpened(origin string) {
	m.websocketActive.WithLabelValues(origin).Inc()
}

// WebSocketClosed decrements the active WebSocket gauge and records the
// relayed message counts.
func (m *Metrics) WebSocketClosed(origin string, sent, received int64) {
	m.websocketActive.WithLabelValues(origin).Dec()
	m.websocketRelayed.WithLabelValues(origin, "to_client").Add(float64(sent))
	m.websocketRelayed.WithLabelValues(origin, "to_upstream").Add(float64(received))
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// originKey is the context key for the selected origin.
type originKeyType struct{}

var originKey originKeyType

// originHolder is a mutable slot installed by middleware before the
// forwarder runs. The forwarder writes the selected origin into it, so
// middleware wrapping the forwarder can read the value after the fact
// without deriving a new request.
type originHolder struct {
	origin string
}

// ContextWithOriginHolder installs an empty origin slot in the context.
// Idempotent: an existing slot is kept.
func ContextWithOriginHolder(ctx context.Context) context.Context {
	if _, ok := ctx.Value(originKey).(*originHolder); ok {
		return ctx
	}
	return context.WithValue(ctx, originKey, &originHolder{})
}

// SetOrigin records the selected origin key in the context slot, if one
// is installed.
func SetOrigin(ctx context.Context, origin string) {
	if h, ok := ctx.Value(originKey).(*originHolder); ok {
		h.origin = origin
	}
}

// OriginFromContext returns the selected origin key, or the unknown
// sentinel if selection has not run.
func OriginFromContext(ctx context.Context) string {
	if h, ok := ctx.Value(originKey).(*originHolder); ok && h.origin != "" {
		return h.origin
	}
	return unknownOrigin
}

// MetricsMiddleware returns a middleware that records request metrics.
// The origin label comes from context (set by the forwarder), keeping
// label cardinality bounded regardless of request paths.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			method := r.Method

			r = r.WithContext(ContextWithOriginHolder(r.Context()))

			rw := &metricsResponseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			metrics.activeRequests.WithLabelValues(method).Inc()

			next.ServeHTTP(rw, r)

			metrics.activeRequests.WithLabelValues(method).Dec()

			origin := OriginFromContext(r.Context())
			metrics.RecordRequest(method, origin, rw.status, time.Since(start))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status
// code.
type metricsResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush implements http.Flusher for streaming passthrough.
func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for WebSocket passthrough.
func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
