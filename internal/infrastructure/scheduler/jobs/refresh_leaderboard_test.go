package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/persistence/memory"
)

type stubRanker struct {
	ranking *leaderboard.Ranking
	err     error
	periods []leaderboard.Period
}

func (s *stubRanker) GlobalRanking(ctx context.Context, period leaderboard.Period) (*leaderboard.Ranking, error) {
	s.periods = append(s.periods, period)
	return s.ranking, s.err
}

func TestRefreshLeaderboardJob_InvalidatesAndRecomputes(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewLeaderboardCache()
	require.NoError(t, cache.Set(ctx, leaderboard.ScopeGlobal, leaderboard.PeriodAllTime,
		[]*leaderboard.Row{{UserID: "stale"}}))

	ranker := &stubRanker{ranking: leaderboard.NewRanking()}
	job := NewRefreshLeaderboardJob(ranker, cache, 0, nil)

	require.NoError(t, job.Run(ctx))

	rows, err := cache.Get(ctx, leaderboard.ScopeGlobal, leaderboard.PeriodAllTime)
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.Equal(t, []leaderboard.Period{leaderboard.PeriodAllTime}, ranker.periods)
	require.NotNil(t, job.LastStats())
	assert.Zero(t, job.LastStats().Users)
}

func TestRefreshLeaderboardJob_RankerError(t *testing.T) {
	job := NewRefreshLeaderboardJob(&stubRanker{err: errors.New("db down")}, nil, 0, nil)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, job.LastStats())
	assert.Equal(t, "refresh_leaderboard", job.Name())
}
