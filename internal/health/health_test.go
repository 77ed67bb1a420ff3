package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	c := NewChecker("1.2.3")

	resp := c.Health()
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
}

func TestReadinessAggregation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks map[string]Status
		want   Status
	}{
		{
			name:   "no checks",
			checks: map[string]Status{},
			want:   StatusHealthy,
		},
		{
			name:   "all healthy",
			checks: map[string]Status{"a": StatusHealthy, "b": StatusHealthy},
			want:   StatusHealthy,
		},
		{
			name:   "degraded wins over healthy",
			checks: map[string]Status{"a": StatusHealthy, "b": StatusDegraded},
			want:   StatusDegraded,
		},
		{
			name:   "unhealthy wins over degraded",
			checks: map[string]Status{"a": StatusDegraded, "b": StatusUnhealthy},
			want:   StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("test")
			for name, status := range tt.checks {
				s := status
				c.RegisterCheck(name, func() Check {
					return Check{Status: s}
				})
			}

			resp := c.Readiness()
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestUnregisterCheck(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")
	c.RegisterCheck("flaky", func() Check {
		return Check{Status: StatusUnhealthy}
	})
	require.Equal(t, StatusUnhealthy, c.Readiness().Status)

	c.UnregisterCheck("flaky")
	assert.Equal(t, StatusHealthy, c.Readiness().Status)
}

func TestReadinessHandlerStatusCodes(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.RegisterCheck("down", func() Check {
		return Check{Status: StatusUnhealthy, Message: "nope"}
	})

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "nope", resp.Checks["down"].Message)
}

func TestReadinessHandlerDegradedStaysOK(t *testing.T) {
	t.Parallel()

	// Degraded upstreams must not fail the readiness probe: the gateway
	// itself is fine and a restart would not help.
	c := NewChecker("test")
	c.RegisterCheck("slow-origin", func() Check {
		return Check{Status: StatusDegraded}
	})

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	c := NewChecker("2.0.0")

	rec := httptest.NewRecorder()
	c.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "2.0.0", resp.Version)
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUpstreamCheck(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	check := UpstreamCheck(upstream.URL, upstream.Client(), time.Second)
	result := check()
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestUpstreamCheckUnreachableIsDegraded(t *testing.T) {
	t.Parallel()

	check := UpstreamCheck("http://127.0.0.1:1", http.DefaultClient, 500*time.Millisecond)
	result := check()
	assert.Equal(t, StatusDegraded, result.Status)
	assert.NotEmpty(t, result.Message)
}
