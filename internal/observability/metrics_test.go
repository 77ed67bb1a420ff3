package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_record")

	m.RecordRequest(http.MethodGet, "api", 200, 15*time.Millisecond)
	m.RecordRequest(http.MethodGet, "api", 200, 20*time.Millisecond)
	m.RecordRequest(http.MethodPost, "frontend", 404, 5*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		m.requestsTotal.WithLabelValues(http.MethodGet, "api", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.requestsTotal.WithLabelValues(http.MethodPost, "frontend", "404")))
}

func TestRecordUpstreamError(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_upstream")

	m.RecordUpstreamError("docs")
	m.RecordUpstreamError("docs")

	assert.Equal(t, float64(2), testutil.ToFloat64(
		m.upstreamErrors.WithLabelValues("docs")))
}

func TestWebSocketGaugeAndCounters(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_ws")

	m.WebSocketOpened("api")
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.websocketActive.WithLabelValues("api")))

	m.WebSocketClosed("api", 3, 5)
	assert.Equal(t, float64(0), testutil.ToFloat64(
		m.websocketActive.WithLabelValues("api")))
	assert.Equal(t, float64(3), testutil.ToFloat64(
		m.websocketRelayed.WithLabelValues("api", "to_client")))
	assert.Equal(t, float64(5), testutil.ToFloat64(
		m.websocketRelayed.WithLabelValues("api", "to_upstream")))
}

func TestMetricsHandlerExposition(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_expo")
	m.SetBuildInfo("1.2.3", "abc123", "2026-01-01")
	m.RecordRequest(http.MethodGet, "docs", 200, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "test_expo_requests_total")
	assert.Contains(t, body, "test_expo_build_info")
	assert.Contains(t, body, `version="1.2.3"`)
}

func TestOriginHolder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Equal(t, "unknown", OriginFromContext(ctx))

	// Without a slot installed, SetOrigin is a no-op.
	SetOrigin(ctx, "api")
	assert.Equal(t, "unknown", OriginFromContext(ctx))

	ctx = ContextWithOriginHolder(ctx)
	assert.Equal(t, "unknown", OriginFromContext(ctx))

	SetOrigin(ctx, "api")
	assert.Equal(t, "api", OriginFromContext(ctx))

	// Installing again keeps the existing slot and its value.
	again := ContextWithOriginHolder(ctx)
	assert.Equal(t, "api", OriginFromContext(again))
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_mw")

	handler := MetricsMiddleware(m)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetOrigin(r.Context(), "docs")
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.requestsTotal.WithLabelValues(http.MethodGet, "docs", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(
		m.activeRequests.WithLabelValues(http.MethodGet)))
}

func TestMetricsMiddlewareUnknownOriginWhenSelectorSkipped(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_mw_unknown")

	handler := MetricsMiddleware(m)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.requestsTotal.WithLabelValues(http.MethodGet, "unknown", "200")))
}

func TestMetricsNamespaceDefault(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	m.RecordRequest(http.MethodGet, "api", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.True(t, strings.Contains(rec.Body.String(), "edge_requests_total"))
}
