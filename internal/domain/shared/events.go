package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one is also the change-notification channel name
// published to presentation layers.
const (
	EventActivityLogged      EventType = "ledger.activity_logged"
	EventPointsAwarded       EventType = "ledger.points_awarded"
	EventStreakUpdated       EventType = "progress.streak_updated"
	EventAchievementUnlocked EventType = "progress.achievement_unlocked"
	EventContentUsed         EventType = "content.used"
	EventCreatorRewardFailed EventType = "content.creator_reward_failed"
	EventPointsConfigUpdated EventType = "config.points_updated"
)

// Event is the base interface for all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time

	// AggregateID returns the ID of the user the event concerns.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }
func (e BaseEvent) Correlation() string   { return e.CorrelationID }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// PointsAwardedEvent is emitted after every successful ledger write.
type PointsAwardedEvent struct {
	BaseEvent
	EntryID  string `json:"entry_id"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Points   int    `json:"points"`
	NewTotal int    `json:"new_total"`
}

func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"entry_id":  e.EntryID,
		"category":  e.Category,
		"source":    e.Source,
		"points":    e.Points,
		"new_total": e.NewTotal,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent. Activity sources
// get the activity_logged type so subscribers can tell them apart.
func NewPointsAwardedEvent(userID, entryID, category, source string, points, newTotal int) PointsAwardedEvent {
	t := EventPointsAwarded
	if source == "activity" {
		t = EventActivityLogged
	}
	return PointsAwardedEvent{
		BaseEvent: NewBaseEvent(t, userID),
		EntryID:   entryID,
		Category:  category,
		Source:    source,
		Points:    points,
		NewTotal:  newTotal,
	}
}

// StreakUpdatedEvent is emitted when the daily streak transition fires.
type StreakUpdatedEvent struct {
	BaseEvent
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
	Previous      int `json:"previous"`
}

func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
		"previous":       e.Previous,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, previous, current, longest int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		CurrentStreak: current,
		LongestStreak: longest,
		Previous:      previous,
	}
}

// AchievementUnlockedEvent is emitted once per (user, achievement type).
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID   string `json:"achievement_id"`
	AchievementType string `json:"achievement_type"`
	Title           string `json:"title"`
}

func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id":   e.AchievementID,
		"achievement_type": e.AchievementType,
		"title":            e.Title,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, achievementType, title string) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID),
		AchievementID:   achievementID,
		AchievementType: achievementType,
		Title:           title,
	}
}

// ContentUsedEvent is emitted when a user consumes shared content.
type ContentUsedEvent struct {
	BaseEvent
	ContentType     string `json:"content_type"`
	ContentID       string `json:"content_id"`
	CreatorID       string `json:"creator_id,omitempty"`
	CreatorRewarded bool   `json:"creator_rewarded"`
}

func (e ContentUsedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"content_type":     e.ContentType,
		"content_id":       e.ContentID,
		"creator_id":       e.CreatorID,
		"creator_rewarded": e.CreatorRewarded,
	}
}

// NewContentUsedEvent creates a new ContentUsedEvent.
func NewContentUsedEvent(userID, contentType, contentID, creatorID string, creatorRewarded bool) ContentUsedEvent {
	return ContentUsedEvent{
		BaseEvent:       NewBaseEvent(EventContentUsed, userID),
		ContentType:     contentType,
		ContentID:       contentID,
		CreatorID:       creatorID,
		CreatorRewarded: creatorRewarded,
	}
}

// CreatorRewardFailedEvent records a creator-side award that did not land.
// Nothing retries it automatically.
type CreatorRewardFailedEvent struct {
	BaseEvent
	ConsumerID string `json:"consumer_id"`
	ContentID  string `json:"content_id"`
	Reason     string `json:"reason"`
}

func (e CreatorRewardFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"consumer_id": e.ConsumerID,
		"content_id":  e.ContentID,
		"reason":      e.Reason,
	}
}

// NewCreatorRewardFailedEvent creates a new CreatorRewardFailedEvent.
func NewCreatorRewardFailedEvent(creatorID, consumerID, contentID, reason string) CreatorRewardFailedEvent {
	return CreatorRewardFailedEvent{
		BaseEvent:  NewBaseEvent(EventCreatorRewardFailed, creatorID),
		ConsumerID: consumerID,
		ContentID:  contentID,
		Reason:     reason,
	}
}

// PointsConfigUpdatedEvent is emitted when a user changes a category config.
type PointsConfigUpdatedEvent struct {
	BaseEvent
	Category   string  `json:"category"`
	Base       int     `json:"base"`
	Multiplier float64 `json:"multiplier"`
}

func (e PointsConfigUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"category":   e.Category,
		"base":       e.Base,
		"multiplier": e.Multiplier,
	}
}

// NewPointsConfigUpdatedEvent creates a new PointsConfigUpdatedEvent.
func NewPointsConfigUpdatedEvent(userID, category string, base int, multiplier float64) PointsConfigUpdatedEvent {
	return PointsConfigUpdatedEvent{
		BaseEvent:  NewBaseEvent(EventPointsConfigUpdated, userID),
		Category:   category,
		Base:       base,
		Multiplier: multiplier,
	}
}

// EventEnvelope wraps an event for transport.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
