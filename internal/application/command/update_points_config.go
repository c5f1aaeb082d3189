package command

import (
	"context"
	"fmt"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
)

// UpdatePointsConfigCommand changes one category of a user's points config.
type UpdatePointsConfigCommand struct {
	UserID     string
	Category   string
	Base       int
	Multiplier float64
}

// Validate validates the command.
func (c UpdatePointsConfigCommand) Validate() error {
	if err := shared.RequireActor("points", "UpdateConfig", c.UserID); err != nil {
		return err
	}
	if _, ok := points.ParseCategory(c.Category); !ok {
		return shared.Validation("points", "UpdateConfig", fmt.Sprintf("unknown category %q", c.Category))
	}
	return points.CategoryConfig{Base: c.Base, Multiplier: c.Multiplier}.Validate()
}

// UpdatePointsConfigHandler handles UpdatePointsConfigCommand.
type UpdatePointsConfigHandler struct {
	repo      points.ConfigRepository
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewUpdatePointsConfigHandler creates a new UpdatePointsConfigHandler.
func NewUpdatePointsConfigHandler(repo points.ConfigRepository, publisher shared.EventPublisher, log *logger.Logger) *UpdatePointsConfigHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UpdatePointsConfigHandler{repo: repo, publisher: publisher, log: log}
}

// Handle saves the category config and returns the user's full config.
func (h *UpdatePointsConfigHandler) Handle(ctx context.Context, cmd UpdatePointsConfigCommand) (*points.ActivityPointsConfig, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	category, _ := points.ParseCategory(cmd.Category)
	cc := points.CategoryConfig{Base: cmd.Base, Multiplier: cmd.Multiplier}

	if err := h.repo.SaveCategoryConfig(ctx, cmd.UserID, category, cc); err != nil {
		return nil, fmt.Errorf("update_points_config: %w", err)
	}

	if err := h.publisher.Publish(shared.NewPointsConfigUpdatedEvent(cmd.UserID, string(category), cc.Base, cc.Multiplier)); err != nil {
		h.log.Warn("failed to publish config update", logger.UserID(cmd.UserID), logger.Err(err))
	}

	return h.repo.GetConfig(ctx, cmd.UserID)
}
