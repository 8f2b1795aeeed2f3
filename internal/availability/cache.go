package availability

import (
	"context"
	"sync"
	"time"

	"github.com/dentaflow/clinic-platform/internal/backend"
)

// DefaultTTL bounds how long a cached slot list is considered fresh.
const DefaultTTL = 3 * time.Minute

// retentionFactor controls how long expired entries are kept around for
// stale-fallback reads before real eviction.
const retentionFactor = 10

// Cache stores fetched slot lists keyed by fingerprint. An entry older than
// the TTL is logically absent from Get even if not yet evicted; GetStale
// still returns it so a failed refresh can serve degraded data.
type Cache interface {
	Get(ctx context.Context, fp Fingerprint) ([]backend.TimeSlot, bool)
	GetStale(ctx context.Context, fp Fingerprint) ([]backend.TimeSlot, bool)
	Put(ctx context.Context, fp Fingerprint, slots []backend.TimeSlot)
	// Invalidate removes every entry for the given date; when clinicID is
	// non-empty only that clinic's entries are removed.
	Invalidate(ctx context.Context, date, clinicID string)
	InvalidateAll(ctx context.Context)
}

type memoryEntry struct {
	fp        Fingerprint
	slots     []backend.TimeSlot
	fetchedAt time.Time
}

// MemoryCache is the in-process TTL cache used by a single API instance.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a memory cache. A non-positive ttl falls back to
// DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, fp Fingerprint) ([]backend.TimeSlot, bool) {
	c.mu.RLock()
	e, ok := c.entries[fp.Key()]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		// Logically absent. Kept for GetStale until retention passes.
		if c.now().Sub(e.fetchedAt) >= c.ttl*retentionFactor {
			c.mu.Lock()
			delete(c.entries, fp.Key())
			c.mu.Unlock()
		}
		return nil, false
	}
	return e.slots, true
}

func (c *MemoryCache) GetStale(_ context.Context, fp Fingerprint) ([]backend.TimeSlot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fp.Key()]
	if !ok {
		return nil, false
	}
	return e.slots, true
}

func (c *MemoryCache) Put(_ context.Context, fp Fingerprint, slots []backend.TimeSlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fp.Key()] = memoryEntry{fp: fp, slots: slots, fetchedAt: c.now()}
}

func (c *MemoryCache) Invalidate(_ context.Context, date, clinicID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.fp.Date != date {
			continue
		}
		if clinicID != "" && e.fp.ClinicID != clinicID {
			continue
		}
		delete(c.entries, key)
	}
}

func (c *MemoryCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}
