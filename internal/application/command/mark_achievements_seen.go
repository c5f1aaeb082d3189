package command

import (
	"context"
	"fmt"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

// MarkAchievementsSeenHandler clears the "new" badge on a user's achievements.
type MarkAchievementsSeenHandler struct {
	repo achievement.Repository
}

// NewMarkAchievementsSeenHandler creates a new MarkAchievementsSeenHandler.
func NewMarkAchievementsSeenHandler(repo achievement.Repository) *MarkAchievementsSeenHandler {
	return &MarkAchievementsSeenHandler{repo: repo}
}

// Handle marks every achievement seen and returns how many changed.
func (h *MarkAchievementsSeenHandler) Handle(ctx context.Context, userID string) (int, error) {
	if err := shared.RequireActor("achievement", "MarkSeen", userID); err != nil {
		return 0, err
	}
	n, err := h.repo.MarkSeen(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark_achievements_seen: %w", err)
	}
	return n, nil
}
