package points

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		base       int
		multiplier float64
		intensity  Intensity
		want       int
	}{
		{"half rounds up", 10, 1.5, IntensityIntense, 23},
		{"zero base", 0, 3.7, IntensityIntense, 0},
		{"zero base light", 0, 0.1, IntensityLight, 0},
		{"normal identity", 50, 1.0, IntensityNormal, 50},
		{"light half rounds up", 25, 1.0, IntensityLight, 18},
		{"light below half", 30, 1.0, IntensityLight, 21},
		{"small multiplier", 1, 0.2, IntensityNormal, 0},
		{"max base", 500, 2.0, IntensityIntense, 1500},
		{"max multiplier", 500, MaxMultiplier, IntensityIntense, 7500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.base, tt.multiplier, tt.intensity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}

func TestCalculate_InvalidInput(t *testing.T) {
	_, err := Calculate(-1, 1, IntensityNormal)
	assert.True(t, shared.IsValidation(err))

	_, err = Calculate(10, 0, IntensityNormal)
	assert.True(t, shared.IsValidation(err))

	_, err = Calculate(10, 1, Intensity("extreme"))
	assert.True(t, shared.IsValidation(err))

	for _, m := range []float64{MaxMultiplier + 0.01, 1e300, math.Inf(1), math.NaN()} {
		_, err = Calculate(MaxBase, m, IntensityIntense)
		assert.True(t, shared.IsValidation(err), "multiplier %v", m)
	}
}

func TestConfig_PointsForFallsBackToDefaults(t *testing.T) {
	cfg := &ActivityPointsConfig{UserID: "u1"}

	p, err := cfg.PointsFor(CategoryFitness, IntensityNormal)
	require.NoError(t, err)
	assert.Equal(t, 50, p)

	require.NoError(t, cfg.Set(CategoryFitness, CategoryConfig{Base: 10, Multiplier: 1.5}))
	p, err = cfg.PointsFor(CategoryFitness, IntensityIntense)
	require.NoError(t, err)
	assert.Equal(t, 23, p)

	assert.Error(t, cfg.Set(CategoryFitness, CategoryConfig{Base: 501, Multiplier: 1}))
	assert.Error(t, cfg.Set(CategoryFitness, CategoryConfig{Base: 10, Multiplier: 0}))
	assert.Error(t, cfg.Set(CategoryFitness, CategoryConfig{Base: 10, Multiplier: 11}))
	assert.Error(t, cfg.Set(CategoryBonus, CategoryConfig{Base: 10, Multiplier: 1}))
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Fitness ")
	assert.True(t, ok)
	assert.Equal(t, CategoryFitness, c)

	_, ok = ParseCategory("bonus")
	assert.False(t, ok)
	assert.True(t, CategoryBonus.IsLedger())
}

func validEntry() *LogEntry {
	return &LogEntry{
		UserID:       "u1",
		Category:     CategoryFitness,
		ActivityName: "Morning run",
		Points:       50,
		Date:         timeutil.Date(2024, time.June, 1),
		Source:       SourceActivity,
	}
}

func TestLogEntry_Validate(t *testing.T) {
	require.NoError(t, validEntry().Validate(time.Time{}))

	e := validEntry()
	e.UserID = ""
	assert.True(t, shared.IsNotAuthenticated(e.Validate(time.Time{})))

	e = validEntry()
	e.Points = -5
	assert.True(t, shared.IsValidation(e.Validate(time.Time{})))

	e = validEntry()
	e.Category = "gaming"
	assert.True(t, shared.IsValidation(e.Validate(time.Time{})))

	e = validEntry()
	e.Time = "25:99"
	assert.True(t, shared.IsValidation(e.Validate(time.Time{})))

	e = validEntry()
	e.Date = time.Time{}
	assert.True(t, shared.IsValidation(e.Validate(time.Time{})))
}

func TestLogEntry_ValidateRejectsFutureDates(t *testing.T) {
	today := timeutil.Date(2024, time.June, 1)

	require.NoError(t, validEntry().Validate(today))

	e := validEntry()
	e.Date = timeutil.AddDays(today, -3)
	require.NoError(t, e.Validate(today))

	e = validEntry()
	e.Date = timeutil.AddDays(today, 1)
	err := e.Validate(today)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestStatistics_Apply(t *testing.T) {
	s := &Statistics{UserID: "u1"}

	e1 := validEntry()
	e1.Points = 100
	res := s.Apply(e1, DayContext{FirstEntryOfDay: true})
	assert.True(t, res.StreakChanged)

	e2 := validEntry()
	e2.Points = 20
	res = s.Apply(e2, DayContext{FirstEntryOfDay: false, PreviousDayActive: false})
	assert.False(t, res.StreakChanged)

	e3 := validEntry()
	e3.Points = 50
	e3.Date = timeutil.Date(2024, time.June, 2)
	e3.Source = SourceContentUsage
	s.Apply(e3, DayContext{FirstEntryOfDay: true, PreviousDayActive: true})

	assert.Equal(t, 170, s.TotalPoints)
	assert.Equal(t, 2, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
	assert.Equal(t, 2, s.ActivitiesLogged)
}
