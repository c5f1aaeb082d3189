package query

import (
	"context"
	"fmt"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

// GetUserRankingQuery asks for one user's standing in the global ranking.
type GetUserRankingQuery struct {
	UserID string
	Period string
}

// UserRankingStats is the user's global row without the display fields.
type UserRankingStats struct {
	UserID               string             `json:"user_id"`
	Period               leaderboard.Period `json:"period"`
	TotalPoints          int                `json:"total_points"`
	CurrentStreak        int                `json:"current_streak"`
	AchievementsUnlocked int                `json:"achievements_unlocked"`
	Rank                 int                `json:"rank"`
	OutOf                int                `json:"out_of"`
}

// GetUserRankingHandler handles GetUserRankingQuery over the leaderboard.
type GetUserRankingHandler struct {
	leaderboard *GetLeaderboardHandler
}

// NewGetUserRankingHandler creates a new GetUserRankingHandler.
func NewGetUserRankingHandler(lb *GetLeaderboardHandler) *GetUserRankingHandler {
	return &GetUserRankingHandler{leaderboard: lb}
}

// Handle executes the query.
func (h *GetUserRankingHandler) Handle(ctx context.Context, q GetUserRankingQuery) (*UserRankingStats, error) {
	if q.UserID == "" {
		return nil, shared.ErrInvalidUserID
	}
	period, err := leaderboard.ParsePeriod(q.Period)
	if err != nil {
		return nil, err
	}

	ranking, err := h.leaderboard.GlobalRanking(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("get_user_ranking: %w", err)
	}

	row := ranking.Get(q.UserID)
	if row == nil {
		return nil, shared.ErrUserNotFound
	}

	return &UserRankingStats{
		UserID:               row.UserID,
		Period:               period,
		TotalPoints:          row.TotalPoints,
		CurrentStreak:        row.CurrentStreak,
		AchievementsUnlocked: row.AchievementsUnlocked,
		Rank:                 row.Rank.Int(),
		OutOf:                ranking.Count(),
	}, nil
}
