package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

func rows() []*Row {
	return []*Row{
		{UserID: "c", TotalPoints: 100, AchievementsUnlocked: 1},
		{UserID: "a", TotalPoints: 100, AchievementsUnlocked: 1},
		{UserID: "b", TotalPoints: 100, AchievementsUnlocked: 3},
		{UserID: "d", TotalPoints: 250},
		{UserID: "e", TotalPoints: 0},
	}
}

func ids(r *Ranking) []string {
	var out []string
	for _, row := range r.Rows() {
		out = append(out, row.UserID)
	}
	return out
}

func TestRank_TotalOrderWithTieBreaks(t *testing.T) {
	r := Rank(rows())

	assert.Equal(t, []string{"d", "b", "a", "c", "e"}, ids(r))
	for i, row := range r.Rows() {
		assert.Equal(t, shared.Rank(i+1), row.Rank)
		if i > 0 {
			assert.LessOrEqual(t, row.TotalPoints, r.Rows()[i-1].TotalPoints)
		}
	}
}

func TestRank_ReproducibleRegardlessOfInputOrder(t *testing.T) {
	first := ids(Rank(rows()))

	in := rows()
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	assert.Equal(t, first, ids(Rank(in)))
}

func TestAttachFriendship_DoesNotAffectOrder(t *testing.T) {
	r := Rank(rows())
	before := ids(r)

	r.AttachFriendship("a", map[string]social.FriendshipStatus{"b": social.StatusAccepted, "c": social.StatusPending})

	assert.Equal(t, before, ids(r))
	assert.Nil(t, r.Get("a").FriendshipStatus)
	assert.Equal(t, social.StatusAccepted, *r.Get("b").FriendshipStatus)
	assert.Equal(t, social.StatusPending, *r.Get("c").FriendshipStatus)
	assert.Equal(t, social.StatusNone, *r.Get("d").FriendshipStatus)
}

func TestApplyPositionChange(t *testing.T) {
	now := time.Now()
	prev := &Snapshot{Ranks: map[string]shared.Rank{"a": 1, "b": 3, "x": 2}}

	r := Rank([]*Row{
		{UserID: "a", TotalPoints: 10},
		{UserID: "b", TotalPoints: 50},
		{UserID: "n", TotalPoints: 5},
	})
	r.ApplyPositionChange(prev)

	require.NotNil(t, r.Get("b").PositionChange)
	assert.Equal(t, 2, *r.Get("b").PositionChange) // 3 -> 1
	assert.Equal(t, -1, *r.Get("a").PositionChange) // 1 -> 2
	assert.Nil(t, r.Get("n").PositionChange)

	snap := NewSnapshot("a", PeriodWeekly, r, now)
	assert.Equal(t, shared.Rank(1), snap.Ranks["b"])
	assert.Len(t, snap.Ranks, 3)
}

func TestParse(t *testing.T) {
	p, err := ParsePeriod("all-time")
	require.NoError(t, err)
	assert.Equal(t, PeriodAllTime, p)

	_, err = ParsePeriod("yearly")
	assert.True(t, shared.IsValidation(err))

	s, err := ParseScope("friends")
	require.NoError(t, err)
	assert.Equal(t, ScopeFriends, s)

	_, err = ParseScope("team")
	assert.True(t, shared.IsValidation(err))
}

func TestPeriodWindow(t *testing.T) {
	today := timeutil.Date(2024, time.June, 30)

	from, to, ok := PeriodMonthly.Window(today)
	require.True(t, ok)
	assert.Equal(t, timeutil.Date(2024, time.June, 1), from)
	assert.Equal(t, today, to)

	_, _, ok = PeriodAllTime.Window(today)
	assert.False(t, ok)
}

func TestPage(t *testing.T) {
	r := Rank(rows())
	assert.Len(t, r.Page(shared.NewPagination(1, 2)), 2)
	assert.Len(t, r.Page(shared.NewPagination(3, 2)), 1)
	assert.Empty(t, r.Page(shared.NewPagination(4, 2)))
}
