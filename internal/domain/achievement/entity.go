package achievement

import (
	"context"
	"time"
)

// Achievement is an unlocked catalogue entry. Only IsNew ever changes.
type Achievement struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        Type      `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	AchievedAt  time.Time `json:"achieved_at"`
	IsNew       bool      `json:"is_new"`
}

// FromRule builds the record for a freshly unlocked rule.
func FromRule(id, userID string, r Rule, at time.Time) *Achievement {
	return &Achievement{
		ID:          id,
		UserID:      userID,
		Type:        r.Type,
		Title:       r.Title,
		Description: r.Description,
		Icon:        r.Icon,
		AchievedAt:  at,
		IsNew:       true,
	}
}

// Progress is the snapshot of user state the rules are evaluated against.
type Progress struct {
	CurrentStreak    int
	TotalPoints      int
	ActivitiesLogged int
}

func (p Progress) value(m Metric) int {
	switch m {
	case MetricStreak:
		return p.CurrentStreak
	case MetricPoints:
		return p.TotalPoints
	case MetricActivities:
		return p.ActivitiesLogged
	}
	return 0
}

// Evaluate returns every satisfied rule that is not already unlocked,
// in catalogue order.
func Evaluate(p Progress, unlocked map[Type]bool) []Rule {
	var out []Rule
	for _, r := range Catalogue {
		if unlocked[r.Type] {
			continue
		}
		if p.value(r.Metric) >= r.Threshold {
			out = append(out, r)
		}
	}
	return out
}

// Repository persists achievements.
type Repository interface {
	// Unlock inserts the achievement unless one of the same type already
	// exists for the user. It reports whether a row was created; only then
	// is achievements_unlocked incremented, in the same transaction.
	Unlock(ctx context.Context, a *Achievement) (bool, error)

	ListByUser(ctx context.Context, userID string) ([]*Achievement, error)

	// CountInWindow counts per user the achievements whose AchievedAt falls
	// in [from, to). userIDs nil means every user.
	CountInWindow(ctx context.Context, userIDs []string, from, to time.Time) (map[string]int, error)

	// MarkSeen clears IsNew on all of a user's achievements and returns
	// how many changed.
	MarkSeen(ctx context.Context, userID string) (int, error)
}
