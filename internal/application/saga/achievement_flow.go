// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Flow: Lock User → Load Statistics → Load Unlocked → Evaluate Catalogue →
//
//	Unlock New → Publish Events
//
// Re-running the flow for the same state unlocks nothing new.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowStep represents a step in the achievement flow.
type AchievementFlowStep string

const (
	StepLockUser        AchievementFlowStep = "lock_user"
	StepLoadStatistics  AchievementFlowStep = "load_statistics"
	StepLoadUnlocked    AchievementFlowStep = "load_unlocked"
	StepUnlock          AchievementFlowStep = "unlock"
	StepPublishUnlocked AchievementFlowStep = "publish_events"
)

// AchievementFlowResult contains the result of one evaluation.
type AchievementFlowResult struct {
	UserID          string
	NewAchievements []*achievement.Achievement
	ProcessedAt     time.Time
}

// HasNewAchievements returns true if any achievements were unlocked.
func (r *AchievementFlowResult) HasNewAchievements() bool {
	return len(r.NewAchievements) > 0
}

// AchievementFlow evaluates the catalogue against a user's statistics.
// It implements command.AchievementEvaluator.
type AchievementFlow struct {
	stats        points.StatisticsRepository
	achievements achievement.Repository
	locker       UserLocker
	publisher    shared.EventPublisher
	clock        timeutil.Clock
	log          *logger.Logger
}

// NewAchievementFlow creates a new AchievementFlow. locker defaults to an
// in-process KeyedMutex.
func NewAchievementFlow(
	stats points.StatisticsRepository,
	achievements achievement.Repository,
	locker UserLocker,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *AchievementFlow {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AchievementFlow{
		stats:        stats,
		achievements: achievements,
		locker:       locker,
		publisher:    publisher,
		clock:        clock,
		log:          log.With(logger.Component("achievement_flow")),
	}
}

// Evaluate implements command.AchievementEvaluator.
func (f *AchievementFlow) Evaluate(ctx context.Context, userID string) error {
	_, err := f.Execute(ctx, userID)
	return err
}

// Execute runs the flow and returns what was unlocked.
func (f *AchievementFlow) Execute(ctx context.Context, userID string) (*AchievementFlowResult, error) {
	if userID == "" {
		return nil, shared.ErrInvalidUserID
	}

	unlock, err := f.locker.Lock(ctx, userID)
	if err != nil {
		return nil, f.stepError(StepLockUser, err)
	}
	defer unlock()

	stats, err := f.stats.GetStatistics(ctx, userID)
	if err != nil {
		return nil, f.stepError(StepLoadStatistics, err)
	}

	existing, err := f.achievements.ListByUser(ctx, userID)
	if err != nil {
		return nil, f.stepError(StepLoadUnlocked, err)
	}
	unlocked := make(map[achievement.Type]bool, len(existing))
	for _, a := range existing {
		unlocked[a.Type] = true
	}

	rules := achievement.Evaluate(achievement.Progress{
		CurrentStreak:    stats.CurrentStreak,
		TotalPoints:      stats.TotalPoints,
		ActivitiesLogged: stats.ActivitiesLogged,
	}, unlocked)

	result := &AchievementFlowResult{UserID: userID}
	now := f.clock.Now().UTC()

	for _, rule := range rules {
		a := achievement.FromRule(uuid.NewString(), userID, rule, now)
		created, err := f.achievements.Unlock(ctx, a)
		if err != nil {
			return result, f.stepError(StepUnlock, err)
		}
		if !created {
			continue
		}
		result.NewAchievements = append(result.NewAchievements, a)

		f.log.Info("achievement unlocked",
			logger.UserID(userID),
			logger.AchievementType(string(a.Type)),
		)
	}

	// Step: publish, failures only logged.
	for _, a := range result.NewAchievements {
		event := shared.NewAchievementUnlockedEvent(userID, a.ID, string(a.Type), a.Title)
		if err := f.publisher.Publish(event); err != nil {
			f.log.Warn("failed to publish achievement event",
				logger.String("step", string(StepPublishUnlocked)),
				logger.UserID(userID),
				logger.Err(err),
			)
		}
	}

	result.ProcessedAt = f.clock.Now().UTC()
	return result, nil
}

func (f *AchievementFlow) stepError(step AchievementFlowStep, err error) error {
	return fmt.Errorf("achievement_flow: %s: %w", step, err)
}
