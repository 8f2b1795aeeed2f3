package handlers

import (
	"math"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dentaflow/clinic-platform/pkg/logging"
)

const (
	cacheReadsMetric   = "dentaflow_availability_cache_reads_total"
	fetchTotalMetric   = "dentaflow_availability_fetch_total"
	fetchLatencyMetric = "dentaflow_availability_fetch_latency_seconds"
	bookingMetric      = "dentaflow_booking_attempts_total"
)

// SchedulingStats is the operational snapshot for the admin surface.
type SchedulingStats struct {
	CacheHits       int64            `json:"cache_hits"`
	CacheMisses     int64            `json:"cache_misses"`
	CacheHitRatePct float64          `json:"cache_hit_rate_pct"`
	FetchOutcomes   map[string]int64 `json:"fetch_outcomes"`
	FetchP90Ms      float64          `json:"fetch_p90_ms"`
	FetchP95Ms      float64          `json:"fetch_p95_ms"`
	BookingStates   map[string]int64 `json:"booking_states"`
}

// SchedulingStatsHandler reports scheduling-core health from the prometheus
// registry, so the admin page does not need to scrape /metrics itself.
type SchedulingStatsHandler struct {
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

func NewSchedulingStatsHandler(gatherer prometheus.Gatherer, logger *logging.Logger) *SchedulingStatsHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SchedulingStatsHandler{gatherer: gatherer, logger: logger}
}

// GetStats handles GET /admin/scheduling/stats.
func (h *SchedulingStatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	mfs, err := h.gatherer.Gather()
	if err != nil {
		h.logger.Error("failed to gather metrics", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "metrics unavailable"})
		return
	}

	stats := SchedulingStats{
		FetchOutcomes: counterByLabel(mfs, fetchTotalMetric, "outcome"),
		BookingStates: counterByLabel(mfs, bookingMetric, "state"),
	}

	reads := counterByLabel(mfs, cacheReadsMetric, "result")
	stats.CacheHits = reads["hit"]
	stats.CacheMisses = reads["miss"]
	if total := stats.CacheHits + stats.CacheMisses; total > 0 {
		stats.CacheHitRatePct = math.Round(float64(stats.CacheHits)/float64(total)*10000) / 100
	}

	p90, p95 := latencyQuantiles(mfs, fetchLatencyMetric)
	stats.FetchP90Ms = p90 * 1000.0
	stats.FetchP95Ms = p95 * 1000.0

	writeJSON(w, http.StatusOK, stats)
}

func findFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf != nil && mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterByLabel(mfs []*dto.MetricFamily, name, label string) map[string]int64 {
	out := map[string]int64{}
	family := findFamily(mfs, name)
	if family == nil {
		return out
	}
	for _, metric := range family.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		value := labelValue(metric, label)
		out[value] += int64(metric.GetCounter().GetValue())
	}
	return out
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func latencyQuantiles(mfs []*dto.MetricFamily, name string) (p90, p95 float64) {
	family := findFamily(mfs, name)
	if family == nil {
		return 0, 0
	}

	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64
	for _, metric := range family.Metric {
		if metric == nil {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		sampleCount += h.GetSampleCount()
		for _, b := range h.Bucket {
			if b == nil {
				continue
			}
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return 0, 0
	}

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	return histogramQuantile(0.90, sampleCount, uppers, cumulativeByUpper),
		histogramQuantile(0.95, sampleCount, uppers, cumulativeByUpper)
}

func histogramQuantile(q float64, total uint64, uppers []float64, cumulativeByUpper map[float64]uint64) float64 {
	if total == 0 || q <= 0 {
		return 0
	}
	if q >= 1 {
		for i := len(uppers) - 1; i >= 0; i-- {
			if !math.IsInf(uppers[i], 1) {
				return uppers[i]
			}
		}
		return 0
	}

	target := q * float64(total)
	var prevUpper float64
	var prevCum float64

	for _, upper := range uppers {
		cum := float64(cumulativeByUpper[upper])
		if cum < target {
			prevUpper = upper
			prevCum = cum
			continue
		}

		bucketCount := cum - prevCum
		if bucketCount <= 0 || upper == prevUpper {
			return upper
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}

		fraction := (target - prevCum) / bucketCount
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		return prevUpper + fraction*(upper-prevUpper)
	}

	return uppers[len(uppers)-1]
}
