package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `hrconnect_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `hrconnect_http_request_duration_seconds_bucket{route="/test"`)
}

func TestObservePermissionLabelsResult(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePermission("reports", "read", true)
	metrics.ObservePermission("reports", "read", false)
	metrics.ObservePermission("reports", "read", false)

	body := scrape(t, metrics)
	require.Contains(t, body, `hrconnect_permission_checks_total{action="read",resource="reports",result="allow"} 1`)
	require.Contains(t, body, `hrconnect_permission_checks_total{action="read",resource="reports",result="deny"} 2`)
}

func TestJobMetricsShareRegistry(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("audit:role_changed").End(nil)
	err := metrics.Jobs().Track("audit:role_changed").End(errors.New("boom"))
	require.EqualError(t, err, "boom")

	body := scrape(t, metrics)
	require.Contains(t, body, `hrconnect_jobs_total{job="audit:role_changed",status="success"} 1`)
	require.Contains(t, body, `hrconnect_jobs_failures_total{job="audit:role_changed"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObservePermission("reports", "read", true)
	require.Nil(t, metrics.Jobs())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "Service Unavailable"))
}
