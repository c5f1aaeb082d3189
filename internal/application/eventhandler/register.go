package eventhandler

import (
	"fmt"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

// Register subscribes the handlers to their events.
func Register(bus shared.EventSubscriber, points *OnPointsChangedHandler, rewards *OnCreatorRewardFailedHandler) error {
	if points != nil {
		for _, t := range points.EventTypes() {
			if err := bus.Subscribe(t, points.Handle); err != nil {
				return fmt.Errorf("subscribe %s: %w", t, err)
			}
		}
	}
	if rewards != nil {
		if err := bus.Subscribe(shared.EventCreatorRewardFailed, rewards.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", shared.EventCreatorRewardFailed, err)
		}
	}
	return nil
}
