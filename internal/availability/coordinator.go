package availability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentaflow/clinic-platform/internal/backend"
	"github.com/dentaflow/clinic-platform/internal/observability/metrics"
	"github.com/dentaflow/clinic-platform/pkg/logging"
)

var availabilityTracer = otel.Tracer("dentaflow.internal.availability")

// SlotFetcher performs the actual backend availability call.
type SlotFetcher interface {
	AvailableSlots(ctx context.Context, q backend.SlotQuery) ([]backend.TimeSlot, error)
}

// Query is one availability request from the UI layer.
type Query struct {
	ClinicID  string
	Date      string // YYYY-MM-DD
	DentistID string // empty means any dentist
	Duration  int
}

// Fingerprint derives the canonical identity of this query.
func (q Query) Fingerprint() Fingerprint {
	return NewFingerprint(q.Date, q.ClinicID, q.DentistID, q.Duration)
}

func (q Query) slotQuery() backend.SlotQuery {
	return backend.SlotQuery{
		ClinicID:  q.ClinicID,
		Date:      q.Date,
		DentistID: q.DentistID,
		Duration:  q.Duration,
	}
}

// pendingFetch is the shared outcome for every caller of one fingerprint.
// Invariant: at most one pendingFetch per fingerprint; at most one backend
// fetch per pendingFetch.
type pendingFetch struct {
	done    chan struct{}
	slots   []backend.TimeSlot
	err     error
	started bool
	query   Query
	timer   *time.Timer
}

// Coordinator owns the slot cache, the pending-fetch table, and the
// debounce timers. Callers never mutate those directly.
type Coordinator struct {
	mu      sync.Mutex
	cache   Cache
	fetcher SlotFetcher
	pending map[string]*pendingFetch
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

// NewCoordinator constructs a request coordinator. Cache and fetcher are
// required; metrics may be nil.
func NewCoordinator(cache Cache, fetcher SlotFetcher, m *metrics.SchedulingMetrics, logger *logging.Logger) *Coordinator {
	if cache == nil {
		panic("availability: cache required")
	}
	if fetcher == nil {
		panic("availability: fetcher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		cache:   cache,
		fetcher: fetcher,
		pending: make(map[string]*pendingFetch),
		metrics: m,
		logger:  logger,
	}
}

// RequestSlots resolves the bookable slots for a query.
//
// Invalid parameters resolve to an empty list rather than an error:
// availability reads are non-fatal to the surrounding booking flow. A fresh
// cache entry short-circuits everything. Otherwise callers for the same
// fingerprint share one backend fetch: later arrivals attach to the pending
// outcome, and while a debounce window is open each new call replaces the
// timer and the fetch parameters (last call wins).
//
// Transient fetch failures degrade to a stale cache entry when one exists,
// else to an empty list. Configuration errors (no dentist assigned to the
// clinic) are returned as errors and never cached.
func (c *Coordinator) RequestSlots(ctx context.Context, q Query, debounce time.Duration) ([]backend.TimeSlot, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.request_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("dentaflow.clinic_id", q.ClinicID),
		attribute.String("dentaflow.date", q.Date),
	)

	if err := validateQuery(q); err != nil {
		c.logger.Warn("availability query rejected", "clinic_id", q.ClinicID, "date", q.Date, "error", err)
		return []backend.TimeSlot{}, nil
	}

	fp := q.Fingerprint()
	if slots, ok := c.cache.Get(ctx, fp); ok {
		c.metrics.ObserveCacheRead(true)
		return slots, nil
	}
	c.metrics.ObserveCacheRead(false)

	key := fp.Key()
	c.mu.Lock()
	if p, ok := c.pending[key]; ok {
		c.attachLocked(p, q, debounce, key)
		c.mu.Unlock()
		return c.wait(ctx, p)
	}

	p := &pendingFetch{done: make(chan struct{}), query: q}
	c.pending[key] = p
	if debounce > 0 {
		p.timer = time.AfterFunc(debounce, func() { c.fire(key) })
	} else {
		go c.fire(key)
	}
	c.mu.Unlock()
	return c.wait(ctx, p)
}

// attachLocked joins a caller to an existing pending fetch, resetting the
// debounce timer when the fetch has not started yet. Caller holds c.mu.
func (c *Coordinator) attachLocked(p *pendingFetch, q Query, debounce time.Duration, key string) {
	c.metrics.ObserveFanInJoin()
	if p.started || p.timer == nil {
		return
	}
	// Stop reports false when the timer already fired; the fetch is then
	// starting with the previous parameters and must not be rescheduled.
	if !p.timer.Stop() {
		return
	}
	p.query = q
	if debounce > 0 {
		c.metrics.ObserveDebounceReset()
		p.timer = time.AfterFunc(debounce, func() { c.fire(key) })
		return
	}
	p.timer = nil
	go c.fire(key)
}

// fire executes the backend fetch for a pending entry and resolves every
// attached caller. The fetch runs under its own timeout, detached from any
// single caller's context, so one caller cancelling cannot strand the rest.
func (c *Coordinator) fire(key string) {
	c.mu.Lock()
	p, ok := c.pending[key]
	if !ok || p.started {
		c.mu.Unlock()
		return
	}
	p.started = true
	p.timer = nil
	q := p.query
	c.mu.Unlock()

	ctx, span := availabilityTracer.Start(context.Background(), "availability.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("dentaflow.clinic_id", q.ClinicID),
		attribute.String("dentaflow.date", q.Date),
	)

	fp := q.Fingerprint()
	start := time.Now()
	slots, err := c.fetcher.AvailableSlots(ctx, q.slotQuery())
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		c.metrics.ObserveFetch("success", elapsed)
		c.cache.Put(ctx, fp, slots)
		p.slots = slots
	case backend.IsConfiguration(err):
		// Administrative problem, not "no availability": surface it and
		// leave the cache empty so a fix is visible immediately.
		c.metrics.ObserveFetch("configuration_error", elapsed)
		span.RecordError(err)
		c.logger.Warn("availability fetch hit configuration error", "clinic_id", q.ClinicID, "date", q.Date, "error", err)
		p.err = err
	default:
		outcome := "error"
		if backend.KindOf(err) == backend.KindTimeout {
			outcome = "timeout"
		}
		c.metrics.ObserveFetch(outcome, elapsed)
		span.RecordError(err)
		if stale, ok := c.cache.GetStale(ctx, fp); ok {
			c.metrics.ObserveStaleFallback()
			c.logger.Warn("availability fetch failed, serving stale cache", "clinic_id", q.ClinicID, "date", q.Date, "error", err)
			p.slots = stale
		} else {
			c.logger.Warn("availability fetch failed with no fallback", "clinic_id", q.ClinicID, "date", q.Date, "error", err)
			p.slots = []backend.TimeSlot{}
		}
	}

	// Remove the pending entry before releasing waiters so a fresh request
	// cannot fan in to a finished operation.
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
	close(p.done)
}

func (c *Coordinator) wait(ctx context.Context, p *pendingFetch) ([]backend.TimeSlot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return p.slots, p.err
	}
}

func validateQuery(q Query) error {
	if strings.TrimSpace(q.ClinicID) == "" {
		return &backend.Error{Kind: backend.KindValidation, Op: "request-slots", Message: "clinicId is required"}
	}
	if _, err := time.Parse("2006-01-02", q.Date); err != nil || len(q.Date) != 10 {
		return &backend.Error{Kind: backend.KindValidation, Op: "request-slots", Message: "date must be YYYY-MM-DD"}
	}
	return nil
}

// Invalidate removes cached availability for a clinic day. Booking flows
// call this after any appointment mutation for that day.
func (c *Coordinator) Invalidate(ctx context.Context, date, clinicID string) {
	c.cache.Invalidate(ctx, date, clinicID)
}
