package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the availability and
// booking flows.
type SchedulingMetrics struct {
	cacheReads     *prometheus.CounterVec
	fetchTotal     *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	fanInJoins     prometheus.Counter
	debounceResets prometheus.Counter
	staleFallbacks prometheus.Counter
	bookingTotal   *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		cacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentaflow",
			Subsystem: "availability",
			Name:      "cache_reads_total",
			Help:      "Slot cache reads by result (hit/miss)",
		}, []string{"result"}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentaflow",
			Subsystem: "availability",
			Name:      "fetch_total",
			Help:      "Backend availability fetches by outcome",
		}, []string{"outcome"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dentaflow",
			Subsystem: "availability",
			Name:      "fetch_latency_seconds",
			Help:      "Latency of backend availability fetches",
			Buckets:   prometheus.DefBuckets,
		}),
		fanInJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dentaflow",
			Subsystem: "availability",
			Name:      "fanin_joins_total",
			Help:      "Callers attached to an already-pending fetch",
		}),
		debounceResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dentaflow",
			Subsystem: "availability",
			Name:      "debounce_resets_total",
			Help:      "Debounce timers replaced by a newer request",
		}),
		staleFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dentaflow",
			Subsystem: "availability",
			Name:      "stale_fallbacks_total",
			Help:      "Expired cache entries served after a failed refresh",
		}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentaflow",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by terminal state",
		}, []string{"operation", "state"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.cacheReads,
		m.fetchTotal,
		m.fetchLatency,
		m.fanInJoins,
		m.debounceResets,
		m.staleFallbacks,
		m.bookingTotal,
	)
	return m
}

func (m *SchedulingMetrics) ObserveCacheRead(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheReads.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) ObserveFetch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(outcome).Inc()
	m.fetchLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveFanInJoin() {
	if m == nil {
		return
	}
	m.fanInJoins.Inc()
}

func (m *SchedulingMetrics) ObserveDebounceReset() {
	if m == nil {
		return
	}
	m.debounceResets.Inc()
}

func (m *SchedulingMetrics) ObserveStaleFallback() {
	if m == nil {
		return
	}
	m.staleFallbacks.Inc()
}

func (m *SchedulingMetrics) ObserveBooking(operation, state string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(operation, state).Inc()
}
