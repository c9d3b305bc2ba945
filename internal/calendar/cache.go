package calendar

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	platformredis "cvl/internal/platform/redis"
	"github.com/redis/go-redis/v9"
)

const cacheKey = "cvl:bank-holidays:" + Division

// Cache decorates a Source with a redis-backed copy of the holiday list plus
// an in-process fallback, so one slow feed fetch serves many job runs. Only
// the reference data is cached here; derived case records never are.
//
// A fetch failure with an empty cache propagates as an error: transition jobs
// must abort their date computations rather than guess.
type Cache struct {
	source Source
	redis  *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.RWMutex
	local    []time.Time
	fetched  time.Time
	hasLocal bool
}

func NewCache(source Source, redisClient *platformredis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{source: source, redis: redisClient, ttl: ttl, logger: logger}
}

func (c *Cache) BankHolidays(ctx context.Context) ([]time.Time, error) {
	if dates, ok := c.fromLocal(); ok {
		return dates, nil
	}

	if dates, ok := c.fromRedis(ctx); ok {
		c.storeLocal(dates)
		return dates, nil
	}

	dates, err := c.source.BankHolidays(ctx)
	if err != nil {
		// A stale local copy beats refusing to answer; an absent one does not.
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.hasLocal {
			c.logger.WarnContext(ctx, "bank holiday feed fetch failed, serving stale copy", "error", err)
			return c.local, nil
		}
		return nil, err
	}

	c.storeLocal(dates)
	c.storeRedis(ctx, dates)
	return dates, nil
}

func (c *Cache) fromLocal() ([]time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasLocal || time.Since(c.fetched) > c.ttl {
		return nil, false
	}
	return c.local, true
}

func (c *Cache) storeLocal(dates []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = dates
	c.fetched = time.Now()
	c.hasLocal = true
}

func (c *Cache) fromRedis(ctx context.Context) ([]time.Time, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, cacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "bank holiday cache read failed", "error", err)
		}
		return nil, false
	}
	var days []string
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, false
	}
	dates := make([]time.Time, 0, len(days))
	for _, d := range days {
		parsed, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return nil, false
		}
		dates = append(dates, parsed)
	}
	return dates, true
}

func (c *Cache) storeRedis(ctx context.Context, dates []time.Time) {
	if c.redis == nil {
		return
	}
	days := make([]string, len(dates))
	for i, d := range dates {
		days[i] = d.Format(time.DateOnly)
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "bank holiday cache write failed", "error", err)
	}
}
