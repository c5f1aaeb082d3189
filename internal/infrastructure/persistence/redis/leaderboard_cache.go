package redis

import (
	"context"
	"errors"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/circuitbreaker"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.Cache on Redis. Rows are stored as
// one JSON document per (scope, period) with a TTL, so a missed
// invalidation is bounded in time.
//
// Reads and writes go through a circuit breaker. While it is open the cache
// reports misses and drops writes; callers fall back to the database.
// Invalidate bypasses the breaker so it is always attempted.
type LeaderboardCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache, ttl time.Duration, log *logger.Logger) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("leaderboard_cache"))

	return &LeaderboardCache{
		cache: cache,
		ttl:   ttl,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
		log: log,
	}
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// cachedRanking is the stored document.
type cachedRanking struct {
	Rows     []*leaderboard.Row `json:"rows"`
	CachedAt time.Time          `json:"cached_at"`
}

// Get returns the cached rows, or nil on a miss.
func (c *LeaderboardCache) Get(ctx context.Context, scope leaderboard.Scope, period leaderboard.Period) ([]*leaderboard.Row, error) {
	var doc cachedRanking
	hit := false

	err := c.breaker.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, LeaderboardKey(string(scope), string(period)), &doc)
		switch {
		case err == nil:
			hit = true
			return nil
		case errors.Is(err, ErrCacheMiss):
			return nil
		}
		return err
	}, func(error) error { return nil })
	if err != nil {
		c.log.Warn("leaderboard cache read failed", logger.Period(string(period)), logger.Err(err))
		return nil, nil
	}
	if !hit {
		return nil, nil
	}
	return doc.Rows, nil
}

// Set stores rows with the configured TTL. Requester-specific fields are
// stripped before storage.
func (c *LeaderboardCache) Set(ctx context.Context, scope leaderboard.Scope, period leaderboard.Period, rows []*leaderboard.Row) error {
	doc := cachedRanking{Rows: make([]*leaderboard.Row, len(rows)), CachedAt: time.Now().UTC()}
	for i, r := range rows {
		doc.Rows[i] = r.Clone()
	}

	err := c.breaker.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, LeaderboardKey(string(scope), string(period)), doc, c.ttl)
	}, func(error) error { return nil })
	if err != nil {
		c.log.Warn("leaderboard cache write failed", logger.Period(string(period)), logger.Err(err))
	}
	return nil
}

// Invalidate drops every cached ranking.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, PrefixLeaderboard+"*")
}

// BreakerState reports the circuit breaker state for health output.
func (c *LeaderboardCache) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
