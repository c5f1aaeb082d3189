package eventhandler

import (
	"sync/atomic"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
)

// OnCreatorRewardFailedHandler records failed creator rewards. They are not
// retried; the log line is the record an operator reconciles from.
type OnCreatorRewardFailedHandler struct {
	failures atomic.Int64
	log      *logger.Logger
}

// NewOnCreatorRewardFailedHandler creates a new OnCreatorRewardFailedHandler.
func NewOnCreatorRewardFailedHandler(log *logger.Logger) *OnCreatorRewardFailedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnCreatorRewardFailedHandler{log: log.With(logger.Component("on_creator_reward_failed"))}
}

// Handle implements shared.EventHandler.
func (h *OnCreatorRewardFailedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.CreatorRewardFailedEvent)
	if !ok {
		return nil
	}
	n := h.failures.Add(1)

	h.log.Error("creator reward not credited",
		logger.String("creator_id", e.AggregateID()),
		logger.String("consumer_id", e.ConsumerID),
		logger.ContentID(e.ContentID),
		logger.String("reason", e.Reason),
		logger.Int64("failures_total", n),
	)
	return nil
}

// Failures returns how many failures were recorded since start.
func (h *OnCreatorRewardFailedHandler) Failures() int64 {
	return h.failures.Load()
}
