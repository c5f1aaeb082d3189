// Package jobs contains the scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// GlobalRanker computes the global ranking, reading and filling the cache.
type GlobalRanker interface {
	GlobalRanking(ctx context.Context, period leaderboard.Period) (*leaderboard.Ranking, error)
}

// RefreshLeaderboardJob drops the cached global ranking and recomputes it.
// Invalidation on writes is best-effort, so this bounds how long a missed
// invalidation can serve stale rows.
type RefreshLeaderboardJob struct {
	ranker  GlobalRanker
	cache   leaderboard.Cache
	timeout time.Duration
	log     *logger.Logger

	lastStats atomic.Pointer[RefreshStats]
}

// RefreshStats reports the last run.
type RefreshStats struct {
	CompletedAt time.Time
	Duration    time.Duration
	Users       int
}

// NewRefreshLeaderboardJob creates the job.
func NewRefreshLeaderboardJob(ranker GlobalRanker, cache leaderboard.Cache, timeout time.Duration, log *logger.Logger) *RefreshLeaderboardJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RefreshLeaderboardJob{
		ranker:  ranker,
		cache:   cache,
		timeout: timeout,
		log:     log.With(logger.Component("refresh_leaderboard")),
	}
}

// Name returns the job name.
func (j *RefreshLeaderboardJob) Name() string { return "refresh_leaderboard" }

// Description returns a short description.
func (j *RefreshLeaderboardJob) Description() string {
	return "Recompute the cached all-time global ranking"
}

// Run executes the job.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	if j.cache != nil {
		if err := j.cache.Invalidate(ctx); err != nil {
			j.log.Warn("cache invalidation failed", logger.Err(err))
		}
	}

	ranking, err := j.ranker.GlobalRanking(ctx, leaderboard.PeriodAllTime)
	if err != nil {
		return fmt.Errorf("refresh_leaderboard: %w", err)
	}

	stats := &RefreshStats{
		CompletedAt: time.Now(),
		Duration:    time.Since(start),
		Users:       ranking.Count(),
	}
	j.lastStats.Store(stats)

	j.log.Debug("leaderboard refreshed", logger.Int("users", stats.Users), logger.Latency(stats.Duration))
	return nil
}

// LastStats returns the stats of the last successful run, or nil.
func (j *RefreshLeaderboardJob) LastStats() *RefreshStats {
	return j.lastStats.Load()
}
