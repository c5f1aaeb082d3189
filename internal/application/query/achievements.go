package query

import (
	"context"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

// AchievementsResult lists a user's unlocked achievements, newest first,
// and the catalogue entries still locked.
type AchievementsResult struct {
	Unlocked []*achievement.Achievement `json:"unlocked"`
	Locked   []LockedAchievement        `json:"locked"`
	NewCount int                        `json:"new_count"`
}

// LockedAchievement is a catalogue rule with the user's progress toward it.
type LockedAchievement struct {
	Type      achievement.Type `json:"type"`
	Title     string           `json:"title"`
	Icon      string           `json:"icon"`
	Threshold int              `json:"threshold"`
	Progress  int              `json:"progress"`
}

// ListAchievementsHandler handles achievement listing.
type ListAchievementsHandler struct {
	achievements achievement.Repository
	stats        points.StatisticsRepository
}

// NewListAchievementsHandler creates a new ListAchievementsHandler.
func NewListAchievementsHandler(achievements achievement.Repository, stats points.StatisticsRepository) *ListAchievementsHandler {
	return &ListAchievementsHandler{achievements: achievements, stats: stats}
}

// Handle returns the user's achievements.
func (h *ListAchievementsHandler) Handle(ctx context.Context, userID string) (*AchievementsResult, error) {
	if err := shared.RequireActor("achievement", "List", userID); err != nil {
		return nil, err
	}

	list, err := h.achievements.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := h.stats.GetStatistics(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &AchievementsResult{Unlocked: list, Locked: []LockedAchievement{}}
	have := make(map[achievement.Type]bool, len(list))
	for _, a := range list {
		have[a.Type] = true
		if a.IsNew {
			res.NewCount++
		}
	}

	for _, r := range achievement.Catalogue {
		if have[r.Type] {
			continue
		}
		res.Locked = append(res.Locked, LockedAchievement{
			Type:      r.Type,
			Title:     r.Title,
			Icon:      r.Icon,
			Threshold: r.Threshold,
			Progress:  progressFor(r.Metric, stats),
		})
	}
	return res, nil
}

func progressFor(m achievement.Metric, s *points.Statistics) int {
	switch m {
	case achievement.MetricStreak:
		return s.CurrentStreak
	case achievement.MetricPoints:
		return s.TotalPoints
	case achievement.MetricActivities:
		return s.ActivitiesLogged
	}
	return 0
}
