// Package streak tracks consecutive calendar days with at least one
// ledger entry.
package streak

import (
	"sort"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// State is the per-user streak counters.
type State struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
}

// Advance applies the daily transition for the first entry on day.
// previousDayActive says whether the day before had at least one entry.
// It reports whether the counters changed.
//
// Days at or before LastActivityDate leave the counters alone; those go
// through Backfill. Callers must not call Advance twice for the same day.
func (s *State) Advance(day time.Time, previousDayActive bool) bool {
	day = timeutil.Normalize(day)

	if s.LastActivityDate != nil {
		last := timeutil.Normalize(*s.LastActivityDate)
		if !day.After(last) {
			return false
		}
	}

	if previousDayActive && s.CurrentStreak > 0 {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActivityDate = &day
	return true
}

// IsBackfill reports whether day predates the last active day.
func (s State) IsBackfill(day time.Time) bool {
	return s.LastActivityDate != nil &&
		timeutil.Normalize(day).Before(timeutil.Normalize(*s.LastActivityDate))
}

// Backfill applies the first entry of a day that predates LastActivityDate.
// activeDays are the days that already had entries. A backfilled day can
// join two runs, so the counters are re-derived as of LastActivityDate.
// Neither counter ever decreases. It reports whether the counters changed.
func (s *State) Backfill(day time.Time, activeDays []time.Time) bool {
	if !s.IsBackfill(day) {
		return false
	}

	days := make([]time.Time, 0, len(activeDays)+2)
	days = append(days, activeDays...)
	days = append(days, day, *s.LastActivityDate)
	derived := Derive(days, *s.LastActivityDate)

	changed := false
	if derived.CurrentStreak > s.CurrentStreak {
		s.CurrentStreak = derived.CurrentStreak
		changed = true
	}
	if derived.LongestStreak > s.LongestStreak {
		s.LongestStreak = derived.LongestStreak
		changed = true
	}
	return changed
}

// IsAlive reports whether the current streak can still be extended on asOf,
// meaning the last active day is asOf or the day before.
func (s State) IsAlive(asOf time.Time) bool {
	if s.LastActivityDate == nil || s.CurrentStreak == 0 {
		return false
	}
	d := timeutil.DaysBetween(*s.LastActivityDate, asOf)
	return d == 0 || d == 1
}

// Derive recomputes streak counters from a set of active days.
//
// Current is the run ending at asOf, or at the day before asOf when asOf
// itself has no entry yet. Longest is the longest run anywhere in days.
func Derive(days []time.Time, asOf time.Time) State {
	if len(days) == 0 {
		return State{}
	}

	uniq := make(map[time.Time]struct{}, len(days))
	for _, d := range days {
		uniq[timeutil.Normalize(d)] = struct{}{}
	}
	sorted := make([]time.Time, 0, len(uniq))
	for d := range uniq {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var st State
	run := 0
	for i, d := range sorted {
		if i > 0 && timeutil.IsConsecutiveDay(sorted[i-1], d) {
			run++
		} else {
			run = 1
		}
		if run > st.LongestStreak {
			st.LongestStreak = run
		}
	}

	asOf = timeutil.Normalize(asOf)
	anchor := asOf
	if _, ok := uniq[anchor]; !ok {
		anchor = timeutil.AddDays(asOf, -1)
	}
	for {
		if _, ok := uniq[anchor]; !ok {
			break
		}
		st.CurrentStreak++
		anchor = timeutil.AddDays(anchor, -1)
	}

	last := sorted[len(sorted)-1]
	st.LastActivityDate = &last
	return st
}
