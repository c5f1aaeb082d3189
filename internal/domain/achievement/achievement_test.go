package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(rules []Rule) []Type {
	out := make([]Type, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Type)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	got := Evaluate(Progress{CurrentStreak: 7, TotalPoints: 150, ActivitiesLogged: 3}, nil)
	assert.Equal(t, []Type{"streak_3", "streak_7", "points_100", "activities_1"}, types(got))
}

func TestEvaluate_SkipsUnlocked(t *testing.T) {
	unlocked := map[Type]bool{"streak_3": true, "streak_7": true}
	got := Evaluate(Progress{CurrentStreak: 7}, unlocked)
	assert.Empty(t, got)
}

func TestEvaluate_NothingBelowThresholds(t *testing.T) {
	assert.Empty(t, Evaluate(Progress{CurrentStreak: 2, TotalPoints: 99}, nil))
}

func TestCatalogueIsConsistent(t *testing.T) {
	seen := map[Type]bool{}
	for _, r := range Catalogue {
		require.False(t, seen[r.Type], "duplicate type %s", r.Type)
		seen[r.Type] = true
		assert.NotEmpty(t, r.Title)
		assert.Positive(t, r.Threshold)
	}

	r, ok := Lookup("streak_7")
	require.True(t, ok)
	assert.Equal(t, 7, r.Threshold)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestFromRule(t *testing.T) {
	r, _ := Lookup("points_1000")
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	a := FromRule("a1", "u1", r, at)
	assert.True(t, a.IsNew)
	assert.Equal(t, Type("points_1000"), a.Type)
	assert.Equal(t, "Point Collector", a.Title)
	assert.Equal(t, at, a.AchievedAt)
}
