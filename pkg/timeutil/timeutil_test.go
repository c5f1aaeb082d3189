package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.March, 1), d)

	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)
	_, err = ParseDate("01/03/2024")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := Date(2024, time.February, 28)
	assert.Equal(t, 1, DaysBetween(a, Date(2024, time.February, 29)))
	assert.Equal(t, 2, DaysBetween(a, Date(2024, time.March, 1)))
	assert.Equal(t, -1, DaysBetween(a, Date(2024, time.February, 27)))
	assert.True(t, IsConsecutiveDay(a, Date(2024, time.February, 29)))
}

func TestTodayUsesLocation(t *testing.T) {
	// 22:30 UTC is already the next day in UTC+5.
	clock := FixedClock{T: time.Date(2024, time.May, 10, 22, 30, 0, 0, time.UTC)}
	loc := time.FixedZone("UTC+5", 5*60*60)

	assert.Equal(t, Date(2024, time.May, 10), Today(clock, time.UTC))
	assert.Equal(t, Date(2024, time.May, 11), Today(clock, loc))
}

func TestRollingWindow(t *testing.T) {
	from, to := RollingWindow(Date(2024, time.May, 10), 7)
	assert.Equal(t, Date(2024, time.May, 4), from)
	assert.Equal(t, Date(2024, time.May, 10), to)

	assert.True(t, InRange(Date(2024, time.May, 4), from, to))
	assert.True(t, InRange(Date(2024, time.May, 10), from, to))
	assert.False(t, InRange(Date(2024, time.May, 3), from, to))
	assert.False(t, InRange(Date(2024, time.May, 11), from, to))
}
