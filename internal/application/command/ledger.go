// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINTS LEDGER
// The single write path to user totals. Every activity, award and content
// reward goes through RecordEvent.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementEvaluator re-evaluates the achievement catalogue for a user.
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID string) error
}

// LedgerEvent is one point-earning event to append.
type LedgerEvent struct {
	UserID          string
	Category        points.Category
	Points          int
	Reason          string
	Source          points.Source
	Date            time.Time // zero means today
	Time            string
	DurationMinutes *int
	Notes           string
	Metadata        map[string]any
	IdempotencyKey  string
	CorrelationID   string
}

// LedgerResult is the outcome of a successful append.
type LedgerResult struct {
	Entry         *points.LogEntry
	Stats         *points.Statistics
	StreakChanged bool
}

// PointsLedger appends entries and runs the follow-up evaluation.
type PointsLedger struct {
	repo      points.LedgerRepository
	evaluator AchievementEvaluator
	publisher shared.EventPublisher
	clock     timeutil.Clock
	location  *time.Location
	log       *logger.Logger
}

// PointsLedgerConfig holds the ledger's time settings.
type PointsLedgerConfig struct {
	Clock    timeutil.Clock
	Location *time.Location
}

// NewPointsLedger creates a new PointsLedger. evaluator may be nil.
func NewPointsLedger(
	repo points.LedgerRepository,
	evaluator AchievementEvaluator,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config PointsLedgerConfig,
) *PointsLedger {
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock{}
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PointsLedger{
		repo:      repo,
		evaluator: evaluator,
		publisher: publisher,
		clock:     config.Clock,
		location:  config.Location,
		log:       log.With(logger.Component("points_ledger")),
	}
}

// SetEvaluator wires the achievement evaluator after construction.
func (l *PointsLedger) SetEvaluator(e AchievementEvaluator) {
	l.evaluator = e
}

// Today returns the current calendar date in the ledger's location.
func (l *PointsLedger) Today() time.Time {
	return timeutil.Today(l.clock, l.location)
}

// RecordEvent validates the event, appends it atomically with the total and
// streak update, then publishes events and re-evaluates achievements.
// Nothing is written when validation fails.
func (l *PointsLedger) RecordEvent(ctx context.Context, ev LedgerEvent) (*LedgerResult, error) {
	today := l.Today()
	date := ev.Date
	if date.IsZero() {
		date = today
	}

	entry := &points.LogEntry{
		UserID:          ev.UserID,
		Category:        ev.Category,
		ActivityName:    ev.Reason,
		Points:          ev.Points,
		Date:            timeutil.Normalize(date),
		Time:            ev.Time,
		DurationMinutes: ev.DurationMinutes,
		Notes:           ev.Notes,
		Source:          ev.Source,
		Metadata:        ev.Metadata,
		IdempotencyKey:  ev.IdempotencyKey,
	}
	if err := entry.Validate(today); err != nil {
		return nil, err
	}

	res, err := l.repo.Append(ctx, entry)
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
		if shared.IsNotFound(err) {
			l.log.Error("statistics row missing", logger.UserID(ev.UserID))
		}
		return nil, fmt.Errorf("record event: %w", err)
	}

	l.log.Info("ledger entry recorded",
		logger.UserID(ev.UserID),
		logger.Points(ev.Points),
		logger.Category(string(ev.Category)),
		logger.String("source", string(ev.Source)),
		logger.Int("new_total", res.Stats.TotalPoints),
	)

	l.publish(shared.NewPointsAwardedEvent(ev.UserID, res.Entry.ID, string(res.Entry.Category),
		string(res.Entry.Source), res.Entry.Points, res.Stats.TotalPoints), ev.CorrelationID)

	if res.Effect.StreakChanged {
		l.publish(shared.NewStreakUpdatedEvent(ev.UserID, res.Effect.PreviousStreak,
			res.Stats.CurrentStreak, res.Stats.LongestStreak), ev.CorrelationID)
	}

	if l.evaluator != nil {
		if err := l.evaluator.Evaluate(ctx, ev.UserID); err != nil {
			l.log.Warn("achievement evaluation failed", logger.UserID(ev.UserID), logger.Err(err))
		}
	}

	return &LedgerResult{
		Entry:         res.Entry,
		Stats:         res.Stats,
		StreakChanged: res.Effect.StreakChanged,
	}, nil
}

func (l *PointsLedger) publish(event shared.Event, correlationID string) {
	if correlationID != "" {
		event = withCorrelation(event, correlationID)
	}
	if err := l.publisher.Publish(event); err != nil {
		l.log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())), logger.Err(err))
	}
}

func withCorrelation(event shared.Event, id string) shared.Event {
	switch e := event.(type) {
	case shared.PointsAwardedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
		return e
	case shared.StreakUpdatedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
		return e
	}
	return event
}
