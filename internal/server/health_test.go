package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h *HealthChecker, path string, body any) int {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	if body != nil {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(body))
	}
	return rec.Code
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil, "test")
	h.SetReady(false)

	var resp HealthResponse
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", &resp))
	assert.Equal(t, statusOK, resp.Status)
}

func TestHealthChecker_Readiness(t *testing.T) {
	h := NewHealthChecker(nil, "test")
	assert.True(t, h.IsReady())
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz", nil))

	h.SetReady(false)
	assert.False(t, h.IsReady())

	var resp HealthResponse
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz", &resp))
	assert.Equal(t, statusNotReady, resp.Status)
	assert.Equal(t, statusNotReady, resp.Checks["ready"])
	assert.Equal(t, statusOK, resp.Checks["shutdown"])
}

func TestHealthChecker_DetailedReportsCalendar(t *testing.T) {
	cfg := testConfig(t)
	factory, _ := fakeStoreFactory(t, cfg)
	sc := NewServerContext(context.Background(), cfg, nil, WithStoreFactory(factory))
	defer sc.Shutdown()

	h := NewHealthChecker(sc, "1.2.3")

	var resp DetailedHealthResponse
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz/detailed", &resp))
	assert.Equal(t, calendarPending, resp.Calendar)
	assert.Equal(t, "Asia/Taipei", resp.TimeZone)
	assert.Equal(t, "1.2.3", resp.Version)

	_, err := sc.Executor()
	require.NoError(t, err)
	get(t, h, "/healthz/detailed", &resp)
	assert.Equal(t, calendarReady, resp.Calendar)

	require.NoError(t, sc.Shutdown())
	assert.False(t, h.IsReady())

	var ready HealthResponse
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz", &ready))
	assert.Equal(t, statusShuttingDown, ready.Checks["shutdown"])

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/healthz/detailed", &resp))
	assert.Equal(t, statusShuttingDown, resp.Status)
}
