package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentaflow/clinic-platform/internal/observability/metrics"
)

func TestSchedulingStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)

	for i := 0; i < 3; i++ {
		m.ObserveCacheRead(true)
	}
	m.ObserveCacheRead(false)
	m.ObserveFetch("success", 0.1)
	m.ObserveFetch("success", 0.2)
	m.ObserveFetch("timeout", 8.0)
	m.ObserveBooking("create", "committed")
	m.ObserveBooking("create", "rejected")
	m.ObserveBooking("auto_book", "committed")

	h := NewSchedulingStatsHandler(reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/scheduling/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stats SchedulingStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	assert.Equal(t, int64(3), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.InDelta(t, 75.0, stats.CacheHitRatePct, 0.01)
	assert.Equal(t, int64(2), stats.FetchOutcomes["success"])
	assert.Equal(t, int64(1), stats.FetchOutcomes["timeout"])
	assert.Equal(t, int64(2), stats.BookingStates["committed"])
	assert.Equal(t, int64(1), stats.BookingStates["rejected"])
	assert.Greater(t, stats.FetchP95Ms, 0.0)
}

func TestSchedulingStatsEmptyRegistry(t *testing.T) {
	h := NewSchedulingStatsHandler(prometheus.NewRegistry(), nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/scheduling/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats SchedulingStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.CacheHits)
	assert.Zero(t, stats.CacheHitRatePct)
	assert.Empty(t, stats.FetchOutcomes)
}
