package memory

import (
	"context"
	"sync"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
)

// LeaderboardCache is a process-local leaderboard.Cache used when Redis is
// disabled. Entries live until invalidated.
type LeaderboardCache struct {
	mu      sync.RWMutex
	entries map[string][]*leaderboard.Row
	hits    int
}

// NewLeaderboardCache creates an empty cache.
func NewLeaderboardCache() *LeaderboardCache {
	return &LeaderboardCache{entries: make(map[string][]*leaderboard.Row)}
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

func cacheKey(scope leaderboard.Scope, period leaderboard.Period) string {
	return string(scope) + ":" + string(period)
}

func (c *LeaderboardCache) Get(ctx context.Context, scope leaderboard.Scope, period leaderboard.Period) ([]*leaderboard.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, ok := c.entries[cacheKey(scope, period)]
	if !ok {
		return nil, nil
	}
	c.hits++
	return cloneRows(rows), nil
}

func (c *LeaderboardCache) Set(ctx context.Context, scope leaderboard.Scope, period leaderboard.Period, rows []*leaderboard.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(scope, period)] = cloneRows(rows)
	return nil
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]*leaderboard.Row)
	return nil
}

// Hits returns how many reads were served from the cache.
func (c *LeaderboardCache) Hits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}

func cloneRows(rows []*leaderboard.Row) []*leaderboard.Row {
	out := make([]*leaderboard.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
