// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON POINTS CHANGED HANDLER
// Drops cached rankings whenever a total or an achievement count changes.
// ═══════════════════════════════════════════════════════════════════════════

// OnPointsChangedHandler invalidates the leaderboard cache.
type OnPointsChangedHandler struct {
	cache   leaderboard.Cache
	timeout time.Duration
	log     *logger.Logger
}

// NewOnPointsChangedHandler creates a new OnPointsChangedHandler.
func NewOnPointsChangedHandler(cache leaderboard.Cache, log *logger.Logger) *OnPointsChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnPointsChangedHandler{
		cache:   cache,
		timeout: 2 * time.Second,
		log:     log.With(logger.Component("on_points_changed")),
	}
}

// EventTypes lists the events that change ranking inputs.
func (h *OnPointsChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventActivityLogged,
		shared.EventPointsAwarded,
		shared.EventAchievementUnlocked,
	}
}

// Handle implements shared.EventHandler.
func (h *OnPointsChangedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx); err != nil {
		h.log.Warn("leaderboard cache invalidation failed",
			logger.String("event_type", string(event.EventType())),
			logger.UserID(event.AggregateID()),
			logger.Err(err),
		)
		return err
	}
	return nil
}
