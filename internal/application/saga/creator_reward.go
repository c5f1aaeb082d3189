package saga

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/command"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/content"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATOR REWARD FLOW SAGA
// Flow: Validate → Reward Consumer → Resolve Creator → Reward Creator →
//
//	Increment Usage → Publish Event
//
// The two rewards are independent ledger calls. A failed creator reward
// never rolls back the consumer reward.
// ══════════════════════════════════════════════════════════════════════════════

// Ledger is the write path the flow rewards through.
type Ledger interface {
	RecordEvent(ctx context.Context, ev command.LedgerEvent) (*command.LedgerResult, error)
}

// TrackUsageInput describes one consumption of shared content.
type TrackUsageInput struct {
	ActorID     string
	ContentType string
	ContentID   string

	// CreatorID is optional; when empty it is resolved from the content.
	CreatorID string
	Category  string

	CorrelationID string
}

// Validate checks if the input is valid.
func (i TrackUsageInput) Validate() error {
	if err := shared.RequireActor("content", "TrackUsage", i.ActorID); err != nil {
		return err
	}
	if _, ok := content.ParseType(i.ContentType); !ok {
		return shared.ErrInvalidContentType
	}
	if strings.TrimSpace(i.ContentID) == "" {
		return shared.NewDomainError("content", "TrackUsage", shared.ErrEmptyValue, "content id is required")
	}
	if _, ok := points.ParseCategory(i.Category); !ok {
		return shared.Validation("content", "TrackUsage", fmt.Sprintf("unknown category %q", i.Category))
	}
	return nil
}

// TrackUsageResult reports what the flow did.
type TrackUsageResult struct {
	Success bool `json:"success"`

	ConsumerRewarded bool   `json:"consumer_rewarded"`
	AlreadyRewarded  bool   `json:"already_rewarded,omitempty"`
	CreatorRewarded  bool   `json:"creator_rewarded"`
	CreatorID        string `json:"creator_id,omitempty"`

	// UsageCount is the counter after increment, or -1 if it was not updated.
	UsageCount int `json:"usage_count"`

	PartialFailure *shared.PropagationPartialFailure `json:"-"`
}

// CreatorRewardConfig holds the reward amounts.
type CreatorRewardConfig struct {
	ConsumerPoints int
	CreatorPoints  int

	// CreatorRewardsEnabled gates step 3 entirely.
	CreatorRewardsEnabled bool

	Location *time.Location
}

// DefaultCreatorRewardConfig returns the standard 5/15 split.
func DefaultCreatorRewardConfig() CreatorRewardConfig {
	return CreatorRewardConfig{
		ConsumerPoints:        5,
		CreatorPoints:         15,
		CreatorRewardsEnabled: true,
		Location:              time.UTC,
	}
}

// CreatorRewardFlow credits consumers and creators of shared content.
type CreatorRewardFlow struct {
	ledger    Ledger
	contents  content.Repository
	publisher shared.EventPublisher
	clock     timeutil.Clock
	config    CreatorRewardConfig
	log       *logger.Logger
}

// NewCreatorRewardFlow creates a new CreatorRewardFlow.
func NewCreatorRewardFlow(
	ledger Ledger,
	contents content.Repository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	config CreatorRewardConfig,
) *CreatorRewardFlow {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &CreatorRewardFlow{
		ledger:    ledger,
		contents:  contents,
		publisher: publisher,
		clock:     clock,
		config:    config,
		log:       log.With(logger.Component("creator_reward_flow")),
	}
}

// TrackUsage runs the flow. Only validation failures and a failed consumer
// reward are returned as errors.
func (f *CreatorRewardFlow) TrackUsage(ctx context.Context, in TrackUsageInput) (*TrackUsageResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	contentType, _ := content.ParseType(in.ContentType)
	category, _ := points.ParseCategory(in.Category)
	today := timeutil.Today(f.clock, f.config.Location)

	log := f.log.With(
		logger.UserID(in.ActorID),
		logger.ContentID(in.ContentID),
		logger.String("content_type", string(contentType)),
	)

	result := &TrackUsageResult{UsageCount: -1}

	// Step 1: consumer reward.
	_, err := f.ledger.RecordEvent(ctx, command.LedgerEvent{
		UserID:   in.ActorID,
		Category: category,
		Points:   f.config.ConsumerPoints,
		Reason:   fmt.Sprintf("Used %s", contentType),
		Source:   points.SourceContentUsage,
		Date:     today,
		Metadata: map[string]any{
			"content_type": string(contentType),
			"content_id":   in.ContentID,
		},
		IdempotencyKey: RewardKey(in.ActorID, in.ContentID, points.SourceContentUsage, today),
		CorrelationID:  in.CorrelationID,
	})
	switch {
	case err == nil:
		result.ConsumerRewarded = true
	case errors.Is(err, shared.ErrDuplicateEvent):
		result.AlreadyRewarded = true
		log.Info("content usage already rewarded today")
	default:
		return nil, fmt.Errorf("creator_reward_flow: consumer reward: %w", err)
	}
	result.Success = true

	// Step 2: resolve creator.
	item, findErr := f.contents.Find(ctx, contentType, in.ContentID)
	if findErr != nil && !shared.IsNotFound(findErr) {
		log.Warn("failed to load content", logger.Err(findErr))
	}
	creatorID := in.CreatorID
	if creatorID == "" && item != nil {
		creatorID = item.CreatorID()
	}
	result.CreatorID = creatorID

	// Step 3: creator reward.
	if f.config.CreatorRewardsEnabled && creatorID != "" && creatorID != in.ActorID {
		f.rewardCreator(ctx, in, contentType, category, creatorID, today, result, log)
	}

	// Step 4: usage counter, separate from rewards.
	if item != nil {
		n, err := f.contents.IncrementUsage(ctx, contentType, in.ContentID)
		if err != nil {
			log.Warn("failed to increment usage count", logger.Err(err))
		} else {
			result.UsageCount = n
		}
	}

	if err := f.publisher.Publish(shared.NewContentUsedEvent(in.ActorID, string(contentType),
		in.ContentID, creatorID, result.CreatorRewarded)); err != nil {
		log.Warn("failed to publish content used event", logger.Err(err))
	}

	return result, nil
}

func (f *CreatorRewardFlow) rewardCreator(
	ctx context.Context,
	in TrackUsageInput,
	contentType content.Type,
	category points.Category,
	creatorID string,
	today time.Time,
	result *TrackUsageResult,
	log *logger.Logger,
) {
	_, err := f.ledger.RecordEvent(ctx, command.LedgerEvent{
		UserID:   creatorID,
		Category: category,
		Points:   f.config.CreatorPoints,
		Reason:   fmt.Sprintf("Your %s was used", contentType),
		Source:   points.SourceCreatorReward,
		Date:     today,
		Metadata: map[string]any{
			"content_type": string(contentType),
			"content_id":   in.ContentID,
			"consumer_id":  in.ActorID,
		},
		IdempotencyKey: RewardKey(creatorID+"|"+in.ActorID, in.ContentID, points.SourceCreatorReward, today),
		CorrelationID:  in.CorrelationID,
	})
	if err == nil {
		result.CreatorRewarded = true
		return
	}
	if errors.Is(err, shared.ErrDuplicateEvent) {
		log.Info("creator already rewarded for this usage today", logger.String("creator_id", creatorID))
		return
	}

	result.PartialFailure = &shared.PropagationPartialFailure{
		ConsumerID: in.ActorID,
		CreatorID:  creatorID,
		ContentID:  in.ContentID,
		Err:        err,
	}
	log.Error("creator reward failed",
		logger.String("creator_id", creatorID),
		logger.Err(err),
	)

	if perr := f.publisher.Publish(shared.NewCreatorRewardFailedEvent(creatorID, in.ActorID,
		in.ContentID, err.Error())); perr != nil {
		log.Warn("failed to publish creator reward failure", logger.Err(perr))
	}
}

// RewardKey is the deterministic idempotency key for one reward on one day:
// hex(sha256(userID|contentID|eventType|YYYY-MM-DD)).
func RewardKey(userID, contentID string, eventType points.Source, day time.Time) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		userID, contentID, string(eventType), timeutil.FormatDate(day),
	}, "|")))
	return hex.EncodeToString(sum[:])
}
