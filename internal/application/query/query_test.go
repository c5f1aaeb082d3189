package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/query"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/persistence/memory"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

var today = timeutil.Date(2024, time.March, 10)

type env struct {
	ledger       *memory.LedgerRepository
	achievements *memory.AchievementRepository
	friends      *memory.SocialRepository
	cache        *memory.LeaderboardCache
	handler      *query.GetLeaderboardHandler
}

func newEnv(t *testing.T, ids ...string) *env {
	t.Helper()

	db := memory.NewDB()
	users := memory.NewUserRepository(db)
	for _, id := range ids {
		u, err := user.New(id, "user_"+id, "User "+id, today)
		require.NoError(t, err)
		require.NoError(t, users.Create(context.Background(), u))
	}

	e := &env{
		ledger:       memory.NewLedgerRepository(db),
		achievements: memory.NewAchievementRepository(db),
		friends:      memory.NewSocialRepository(db),
		cache:        memory.NewLeaderboardCache(),
	}
	cfg := query.DefaultLeaderboardConfig()
	cfg.Clock = timeutil.FixedClock{T: today.Add(15 * time.Hour)}
	e.handler = query.NewGetLeaderboardHandler(query.LeaderboardDeps{
		Users:        users,
		Statistics:   e.ledger,
		Windows:      e.ledger,
		Achievements: e.achievements,
		Friends:      e.friends,
		Snapshots:    memory.NewSnapshotRepository(db),
		Cache:        e.cache,
	}, nil, cfg)
	return e
}

func (e *env) add(t *testing.T, userID string, pts int, day time.Time) {
	t.Helper()
	_, err := e.ledger.Append(context.Background(), &points.LogEntry{
		UserID: userID, Category: points.CategoryFitness, ActivityName: "Run",
		Points: pts, Date: day, Source: points.SourceActivity,
	})
	require.NoError(t, err)
}

func (e *env) unlock(t *testing.T, userID string, typ achievement.Type, at time.Time) {
	t.Helper()
	rule, ok := achievement.Lookup(typ)
	require.True(t, ok)
	created, err := e.achievements.Unlock(context.Background(), achievement.FromRule(string(typ)+userID, userID, rule, at))
	require.NoError(t, err)
	require.True(t, created)
}

func (e *env) befriend(t *testing.T, a, b string, accept bool) {
	t.Helper()
	_, err := e.friends.Request(context.Background(), a, b)
	require.NoError(t, err)
	if accept {
		require.NoError(t, e.friends.Accept(context.Background(), a, b))
	}
}

func ids(rows []*leaderboard.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.UserID
	}
	return out
}

func TestLeaderboard_GlobalAllTimeOrder(t *testing.T) {
	e := newEnv(t, "a", "b", "c", "d")
	e.add(t, "a", 100, today)
	e.add(t, "b", 100, today)
	e.add(t, "c", 50, today)
	e.add(t, "c", 50, timeutil.AddDays(today, -400))
	e.unlock(t, "b", "points_100", today)

	res, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Scope: "global", Period: "all-time"})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(res.Rows))
	for i, row := range res.Rows {
		assert.Equal(t, i+1, row.Rank.Int())
		assert.Nil(t, row.FriendshipStatus)
		if i > 0 {
			assert.LessOrEqual(t, row.TotalPoints, res.Rows[i-1].TotalPoints)
		}
	}
	assert.Equal(t, "User b", res.Rows[0].DisplayName)
	assert.Nil(t, res.From)

	for i := 0; i < 3; i++ {
		again, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Period: "all_time"})
		require.NoError(t, err)
		assert.Equal(t, ids(res.Rows), ids(again.Rows))
	}
	assert.Equal(t, 3, e.cache.Hits())
}

func TestLeaderboard_CacheInvalidation(t *testing.T) {
	e := newEnv(t, "a", "b")
	e.add(t, "a", 10, today)

	_, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{})
	require.NoError(t, err)

	e.add(t, "b", 20, today)
	stale, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(stale.Rows))

	require.NoError(t, e.cache.Invalidate(context.Background()))
	fresh, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(fresh.Rows))
}

func TestLeaderboard_RollingWindows(t *testing.T) {
	e := newEnv(t, "a", "b")
	e.add(t, "a", 100, timeutil.AddDays(today, -8))
	e.add(t, "a", 10, timeutil.AddDays(today, -1))
	e.add(t, "a", 10, today)
	e.add(t, "b", 30, timeutil.AddDays(today, -6))
	e.unlock(t, "b", "activities_1", timeutil.AddDays(today, -6).Add(10*time.Hour))
	e.unlock(t, "a", "activities_10", timeutil.AddDays(today, -20))

	weekly, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Period: "weekly"})
	require.NoError(t, err)
	require.Len(t, weekly.Rows, 2)
	assert.Equal(t, []string{"b", "a"}, ids(weekly.Rows))
	assert.Equal(t, 30, weekly.Rows[0].TotalPoints)
	assert.Equal(t, 0, weekly.Rows[0].CurrentStreak)
	assert.Equal(t, 1, weekly.Rows[0].AchievementsUnlocked)
	assert.Equal(t, 20, weekly.Rows[1].TotalPoints)
	assert.Equal(t, 2, weekly.Rows[1].CurrentStreak)
	assert.Equal(t, 0, weekly.Rows[1].AchievementsUnlocked)
	require.NotNil(t, weekly.From)
	assert.Equal(t, "2024-03-04", timeutil.FormatDate(*weekly.From))
	assert.Equal(t, "2024-03-10", timeutil.FormatDate(*weekly.To))

	monthly, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Period: "monthly"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(monthly.Rows))
	assert.Equal(t, 120, monthly.Rows[0].TotalPoints)
	assert.Equal(t, 1, monthly.Rows[0].AchievementsUnlocked)
}

func TestLeaderboard_GlobalFriendshipStatus(t *testing.T) {
	e := newEnv(t, "a", "b", "c", "d")
	e.befriend(t, "a", "b", true)
	e.befriend(t, "c", "a", false)

	res, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{RequesterID: "a"})
	require.NoError(t, err)

	statuses := map[string]*social.FriendshipStatus{}
	for _, r := range res.Rows {
		statuses[r.UserID] = r.FriendshipStatus
	}
	assert.Nil(t, statuses["a"])
	require.NotNil(t, statuses["b"])
	assert.Equal(t, social.StatusAccepted, *statuses["b"])
	assert.Equal(t, social.StatusPending, *statuses["c"])
	assert.Equal(t, social.StatusNone, *statuses["d"])

	// cached rows never carry another requester's statuses
	other, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{})
	require.NoError(t, err)
	for _, r := range other.Rows {
		assert.Nil(t, r.FriendshipStatus)
	}
}

func TestLeaderboard_FriendsPositionChange(t *testing.T) {
	e := newEnv(t, "a", "b", "c")
	e.befriend(t, "a", "b", true)
	e.befriend(t, "a", "c", false)
	e.add(t, "a", 50, today)
	e.add(t, "b", 20, today)
	e.add(t, "c", 999, today)

	first, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Scope: "friends", Period: "all_time", RequesterID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(first.Rows))
	for _, r := range first.Rows {
		assert.Nil(t, r.PositionChange)
	}

	e.add(t, "b", 100, today)
	second, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Scope: "friends", Period: "all_time", RequesterID: "a"})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, ids(second.Rows))
	require.NotNil(t, second.Rows[0].PositionChange)
	assert.Equal(t, 1, *second.Rows[0].PositionChange)
	assert.Equal(t, -1, *second.Rows[1].PositionChange)
}

func TestLeaderboard_InvalidInput(t *testing.T) {
	e := newEnv(t, "a")

	_, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Scope: "friends"})
	assert.True(t, shared.IsNotAuthenticated(err))

	_, err = e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Period: "yearly"})
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)

	_, err = e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Scope: "cohort"})
	assert.ErrorIs(t, err, shared.ErrInvalidScope)
}

func TestLeaderboard_Pagination(t *testing.T) {
	e := newEnv(t, "a", "b", "c")
	e.add(t, "c", 3, today)
	e.add(t, "b", 2, today)
	e.add(t, "a", 1, today)

	res, err := e.handler.Handle(context.Background(), query.GetLeaderboardQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "a", res.Rows[0].UserID)
	assert.Equal(t, 3, res.Rows[0].Rank.Int())
}

func TestUserRanking(t *testing.T) {
	e := newEnv(t, "a", "b", "c")
	e.add(t, "a", 10, today)
	e.add(t, "b", 30, today)
	e.add(t, "c", 20, timeutil.AddDays(today, -1))
	e.add(t, "c", 1, today)
	h := query.NewGetUserRankingHandler(e.handler)

	stats, err := h.Handle(context.Background(), query.GetUserRankingQuery{UserID: "c", Period: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rank)
	assert.Equal(t, 3, stats.OutOf)
	assert.Equal(t, 21, stats.TotalPoints)
	assert.Equal(t, 2, stats.CurrentStreak)

	_, err = h.Handle(context.Background(), query.GetUserRankingQuery{UserID: "zed", Period: "weekly"})
	assert.True(t, shared.IsNotFound(err))
}

func TestListAchievements(t *testing.T) {
	e := newEnv(t, "a")
	e.add(t, "a", 120, today)
	e.unlock(t, "a", "points_100", today)
	h := query.NewListAchievementsHandler(e.achievements, e.ledger)

	res, err := h.Handle(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, res.Unlocked, 1)
	assert.Equal(t, 1, res.NewCount)
	assert.Len(t, res.Locked, len(achievement.Catalogue)-1)
	for _, l := range res.Locked {
		if l.Type == "points_1000" {
			assert.Equal(t, 120, l.Progress)
		}
	}

	n, err := e.achievements.MarkSeen(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err = h.Handle(context.Background(), "a")
	require.NoError(t, err)
	assert.Zero(t, res.NewCount)
}
