// Package leaderboard contains the ranking model: scopes, periods, rows and
// the total order they are sorted by.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE AND PERIOD
// ══════════════════════════════════════════════════════════════════════════════

// Scope selects the ranked population.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeFriends Scope = "friends"
)

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeGlobal, "":
		return ScopeGlobal, nil
	case ScopeFriends:
		return ScopeFriends, nil
	}
	return "", shared.ErrInvalidScope
}

// Period selects the aggregation window.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// ParsePeriod validates a period string. "all-time" is accepted as an alias.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly":
		return PeriodWeekly, nil
	case "monthly":
		return PeriodMonthly, nil
	case "all_time", "all-time", "alltime", "":
		return PeriodAllTime, nil
	}
	return "", shared.ErrInvalidPeriod
}

// WindowDays is the rolling window length for the period, 0 for all-time.
func (p Period) WindowDays() int {
	switch p {
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	}
	return 0
}

// Window returns the inclusive date range of the period ending at today.
// ok is false for all-time.
func (p Period) Window(today time.Time) (from, to time.Time, ok bool) {
	days := p.WindowDays()
	if days == 0 {
		return time.Time{}, time.Time{}, false
	}
	from, to = timeutil.RollingWindow(today, days)
	return from, to, true
}

// ══════════════════════════════════════════════════════════════════════════════
// ROW
// ══════════════════════════════════════════════════════════════════════════════

// Row is one computed leaderboard line.
type Row struct {
	UserID               string                   `json:"user_id"`
	DisplayName          string                   `json:"display_name"`
	TotalPoints          int                      `json:"total_points"`
	CurrentStreak        int                      `json:"current_streak"`
	AchievementsUnlocked int                      `json:"achievements_unlocked"`
	Rank                 shared.Rank              `json:"rank"`
	FriendshipStatus     *social.FriendshipStatus `json:"friendship_status,omitempty"`
	PositionChange       *int                     `json:"position_change,omitempty"`
}

// Clone returns a copy without the requester-specific fields.
func (r *Row) Clone() *Row {
	c := *r
	c.FriendshipStatus = nil
	c.PositionChange = nil
	return &c
}

func (r *Row) String() string {
	return fmt.Sprintf("#%d %s (%d pts)", r.Rank, r.UserID, r.TotalPoints)
}

// Less is the ranking order: points desc, then achievements desc, then
// user id asc. No two distinct users compare equal.
func Less(a, b *Row) bool {
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	if a.AchievementsUnlocked != b.AchievementsUnlocked {
		return a.AchievementsUnlocked > b.AchievementsUnlocked
	}
	return a.UserID < b.UserID
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

var ErrDuplicateUser = errors.New("user already in ranking")

// Ranking is a sorted, indexed list of rows.
type Ranking struct {
	rows []*Row
	byID map[string]*Row
}

// NewRanking creates an empty Ranking.
func NewRanking() *Ranking {
	return &Ranking{byID: make(map[string]*Row)}
}

// Add inserts a row without sorting.
func (r *Ranking) Add(row *Row) error {
	if _, exists := r.byID[row.UserID]; exists {
		return ErrDuplicateUser
	}
	r.rows = append(r.rows, row)
	r.byID[row.UserID] = row
	return nil
}

// Sort orders rows by Less and assigns 1-based positions as ranks.
func (r *Ranking) Sort() {
	sort.SliceStable(r.rows, func(i, j int) bool { return Less(r.rows[i], r.rows[j]) })
	for i, row := range r.rows {
		row.Rank = shared.Rank(i + 1)
	}
}

// Get returns the row for a user or nil.
func (r *Ranking) Get(userID string) *Row {
	return r.byID[userID]
}

// Rows returns the sorted rows.
func (r *Ranking) Rows() []*Row {
	return r.rows
}

// Count returns how many users are ranked.
func (r *Ranking) Count() int {
	return len(r.rows)
}

// Page returns a slice of the ranking.
func (r *Ranking) Page(p shared.Pagination) []*Row {
	from := p.Offset()
	if from >= len(r.rows) {
		return []*Row{}
	}
	to := from + p.Limit()
	if to > len(r.rows) {
		to = len(r.rows)
	}
	return r.rows[from:to]
}

// Rank builds a sorted Ranking from unsorted rows.
func Rank(rows []*Row) *Ranking {
	r := NewRanking()
	for _, row := range rows {
		_ = r.Add(row)
	}
	r.Sort()
	return r
}

// AttachFriendship sets friendship status on rows other than the requester's.
// It never changes order or membership.
func (r *Ranking) AttachFriendship(requesterID string, statuses map[string]social.FriendshipStatus) {
	for _, row := range r.rows {
		if row.UserID == requesterID {
			continue
		}
		st, ok := statuses[row.UserID]
		if !ok {
			st = social.StatusNone
		}
		row.FriendshipStatus = &st
	}
}
