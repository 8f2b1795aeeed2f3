package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dentaflow/clinic-platform/internal/backend"
	"github.com/dentaflow/clinic-platform/pkg/logging"
)

const redisScanBatch = 200

type redisEntry struct {
	Slots     []backend.TimeSlot `json:"slots"`
	FetchedAt time.Time          `json:"fetchedAt"`
}

// RedisCache shares the slot cache between API instances. Keys are retained
// past the freshness TTL so an expired entry can still serve as a stale
// fallback; freshness is judged from the embedded fetchedAt.
type RedisCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time
}

// NewRedisCache creates a redis-backed slot cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisCache {
	if client == nil {
		panic("availability: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisCache{redis: client, ttl: ttl, logger: logger, now: time.Now}
}

func (c *RedisCache) Get(ctx context.Context, fp Fingerprint) ([]backend.TimeSlot, bool) {
	e, ok := c.load(ctx, fp)
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.FetchedAt) >= c.ttl {
		return nil, false
	}
	return e.Slots, true
}

func (c *RedisCache) GetStale(ctx context.Context, fp Fingerprint) ([]backend.TimeSlot, bool) {
	e, ok := c.load(ctx, fp)
	if !ok {
		return nil, false
	}
	return e.Slots, true
}

func (c *RedisCache) load(ctx context.Context, fp Fingerprint) (redisEntry, bool) {
	data, err := c.redis.Get(ctx, fp.Key()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("slot cache read failed", "key", fp.Key(), "error", err)
		}
		return redisEntry{}, false
	}
	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("slot cache entry corrupt", "key", fp.Key(), "error", err)
		return redisEntry{}, false
	}
	return e, true
}

func (c *RedisCache) Put(ctx context.Context, fp Fingerprint, slots []backend.TimeSlot) {
	data, err := json.Marshal(redisEntry{Slots: slots, FetchedAt: c.now()})
	if err != nil {
		c.logger.Warn("slot cache marshal failed", "key", fp.Key(), "error", err)
		return
	}
	if err := c.redis.Set(ctx, fp.Key(), data, c.ttl*retentionFactor).Err(); err != nil {
		c.logger.Warn("slot cache write failed", "key", fp.Key(), "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, date, clinicID string) {
	pattern := fmt.Sprintf("slots:%s:*", date)
	if clinicID != "" {
		pattern = fmt.Sprintf("slots:%s:%s:*", date, clinicID)
	}
	c.deleteMatching(ctx, pattern)
}

func (c *RedisCache) InvalidateAll(ctx context.Context) {
	c.deleteMatching(ctx, "slots:*")
}

func (c *RedisCache) deleteMatching(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, redisScanBatch).Result()
		if err != nil {
			c.logger.Warn("slot cache invalidation scan failed", "pattern", pattern, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("slot cache invalidation delete failed", "pattern", pattern, "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
