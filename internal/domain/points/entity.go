package points

import (
	"strings"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/streak"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// LogEntry is one immutable, point-earning event.
type LogEntry struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Category        Category       `json:"category"`
	ActivityName    string         `json:"activity_name"`
	Points          int            `json:"points"`
	Date            time.Time      `json:"date"`
	Time            string         `json:"time,omitempty"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Source          Source         `json:"source"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	IdempotencyKey  string         `json:"idempotency_key,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

const maxActivityNameLength = 200

// Validate checks an entry before anything is written. today is the
// latest date an entry may carry; a zero today skips that check.
func (e *LogEntry) Validate(today time.Time) error {
	if err := shared.RequireActor("ledger", "RecordEvent", e.UserID); err != nil {
		return err
	}
	if !e.Category.IsLedger() {
		return shared.Validation("ledger", "RecordEvent", "unknown category "+string(e.Category))
	}
	if e.Points < 0 {
		return shared.NewDomainError("ledger", "RecordEvent", shared.ErrNegativeValue, "points cannot be negative")
	}
	name := strings.TrimSpace(e.ActivityName)
	if name == "" {
		return shared.NewDomainError("ledger", "RecordEvent", shared.ErrEmptyValue, "reason cannot be empty")
	}
	if len(name) > maxActivityNameLength {
		return shared.Validation("ledger", "RecordEvent", "reason is too long")
	}
	if e.Date.IsZero() {
		return shared.NewDomainError("ledger", "RecordEvent", shared.ErrInvalidFormat, "date is required")
	}
	if !today.IsZero() && timeutil.Normalize(e.Date).After(timeutil.Normalize(today)) {
		return shared.NewDomainError("ledger", "RecordEvent", shared.ErrValueOutOfRange, "date cannot be in the future")
	}
	if e.Time != "" {
		if err := timeutil.ParseTimeOfDay(e.Time); err != nil {
			return shared.WrapError("ledger", "RecordEvent", shared.ErrInvalidFormat, "malformed time", err)
		}
	}
	if e.DurationMinutes != nil && *e.DurationMinutes < 0 {
		return shared.NewDomainError("ledger", "RecordEvent", shared.ErrNegativeValue, "duration cannot be negative")
	}
	if !e.Source.IsValid() {
		return shared.Validation("ledger", "RecordEvent", "unknown source "+string(e.Source))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// Statistics is the per-user aggregate maintained by the ledger.
type Statistics struct {
	UserID               string     `json:"user_id"`
	TotalPoints          int        `json:"total_points"`
	CurrentStreak        int        `json:"current_streak"`
	LongestStreak        int        `json:"longest_streak"`
	AchievementsUnlocked int        `json:"achievements_unlocked"`
	ActivitiesLogged     int        `json:"activities_logged"`
	LastActivityDate     *time.Time `json:"last_activity_date,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Streak returns the streak portion of the statistics.
func (s *Statistics) Streak() streak.State {
	return streak.State{
		CurrentStreak:    s.CurrentStreak,
		LongestStreak:    s.LongestStreak,
		LastActivityDate: s.LastActivityDate,
	}
}

func (s *Statistics) setStreak(st streak.State) {
	s.CurrentStreak = st.CurrentStreak
	s.LongestStreak = st.LongestStreak
	s.LastActivityDate = st.LastActivityDate
}

// DayContext is what the store knows about the entry's day before inserting it.
type DayContext struct {
	FirstEntryOfDay   bool
	PreviousDayActive bool

	// ActiveDays lists every day the user already has entries on. Stores
	// only fill it when NeedsHistory reports true.
	ActiveDays []time.Time
}

// NeedsHistory reports whether applying an entry dated day requires the
// user's active days, which is the case for backfilled days.
func (s *Statistics) NeedsHistory(day time.Time) bool {
	return s.Streak().IsBackfill(day)
}

// ApplyResult describes the effect of one entry on the statistics.
type ApplyResult struct {
	StreakChanged  bool
	PreviousStreak int
}

// Apply folds a new entry into the statistics. Stores call it inside the
// same transaction that inserts the entry, using an additive update for
// the total.
func (s *Statistics) Apply(e *LogEntry, day DayContext) ApplyResult {
	res := ApplyResult{PreviousStreak: s.CurrentStreak}

	s.TotalPoints += e.Points
	if e.Source == SourceActivity {
		s.ActivitiesLogged++
	}

	if day.FirstEntryOfDay {
		st := s.Streak()
		var changed bool
		if st.IsBackfill(e.Date) {
			changed = st.Backfill(e.Date, day.ActiveDays)
		} else {
			changed = st.Advance(e.Date, day.PreviousDayActive)
		}
		if changed {
			s.setStreak(st)
			res.StreakChanged = true
		}
	}
	return res
}
