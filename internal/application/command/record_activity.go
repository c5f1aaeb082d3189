package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// A user logs an activity. Points are either given explicitly or computed
// from the user's ActivityPointsConfig and an intensity.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand contains the data to record an activity.
type RecordActivityCommand struct {
	// UserID is the acting user; the entry is always written for them.
	UserID string

	Category     string
	ActivityName string

	// Points, when set, is used as-is. Otherwise Intensity (default normal)
	// is applied to the user's config for Category.
	Points    *int
	Intensity string

	// Date is YYYY-MM-DD; empty means today.
	Date            string
	Time            string
	DurationMinutes *int
	Notes           string

	CorrelationID string
}

// Validate validates the command. Dates after today are rejected.
func (c RecordActivityCommand) Validate(today time.Time) error {
	if err := shared.RequireActor("ledger", "RecordActivity", c.UserID); err != nil {
		return err
	}
	if _, ok := points.ParseCategory(c.Category); !ok {
		return shared.Validation("ledger", "RecordActivity", fmt.Sprintf("unknown category %q", c.Category))
	}
	if strings.TrimSpace(c.ActivityName) == "" {
		return shared.NewDomainError("ledger", "RecordActivity", shared.ErrEmptyValue, "activity name is required")
	}
	if c.Points != nil && *c.Points < 0 {
		return shared.NewDomainError("ledger", "RecordActivity", shared.ErrNegativeValue, "points cannot be negative")
	}
	if c.Intensity != "" {
		if _, ok := points.Intensity(c.Intensity).Factor(); !ok {
			return shared.Validation("ledger", "RecordActivity", fmt.Sprintf("unknown intensity %q", c.Intensity))
		}
	}
	if c.Date != "" {
		date, err := timeutil.ParseDate(c.Date)
		if err != nil {
			return shared.WrapError("ledger", "RecordActivity", shared.ErrInvalidFormat, "malformed date", err)
		}
		if date.After(timeutil.Normalize(today)) {
			return shared.NewDomainError("ledger", "RecordActivity", shared.ErrValueOutOfRange, "date cannot be in the future")
		}
	}
	return nil
}

// RecordActivityResult contains the result of recording an activity.
type RecordActivityResult struct {
	Entry         *points.LogEntry `json:"entry"`
	TotalPoints   int              `json:"total_points"`
	CurrentStreak int              `json:"current_streak"`
	LongestStreak int              `json:"longest_streak"`
	StreakUpdated bool             `json:"streak_updated"`
	RecordedAt    time.Time        `json:"recorded_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	ledger     *PointsLedger
	configRepo points.ConfigRepository
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(ledger *PointsLedger, configRepo points.ConfigRepository) *RecordActivityHandler {
	return &RecordActivityHandler{ledger: ledger, configRepo: configRepo}
}

// Handle executes the record activity command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(h.ledger.Today()); err != nil {
		return nil, err
	}

	category, _ := points.ParseCategory(cmd.Category)

	var date time.Time
	if cmd.Date != "" {
		date, _ = timeutil.ParseDate(cmd.Date)
	}

	amount, err := h.resolvePoints(ctx, cmd, category)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{}
	if cmd.Points == nil {
		metadata["intensity"] = h.intensity(cmd)
	}

	res, err := h.ledger.RecordEvent(ctx, LedgerEvent{
		UserID:          cmd.UserID,
		Category:        category,
		Points:          amount,
		Reason:          strings.TrimSpace(cmd.ActivityName),
		Source:          points.SourceActivity,
		Date:            date,
		Time:            cmd.Time,
		DurationMinutes: cmd.DurationMinutes,
		Notes:           cmd.Notes,
		Metadata:        metadata,
		CorrelationID:   cmd.CorrelationID,
	})
	if err != nil {
		return nil, fmt.Errorf("record_activity: %w", err)
	}

	return &RecordActivityResult{
		Entry:         res.Entry,
		TotalPoints:   res.Stats.TotalPoints,
		CurrentStreak: res.Stats.CurrentStreak,
		LongestStreak: res.Stats.LongestStreak,
		StreakUpdated: res.StreakChanged,
		RecordedAt:    res.Entry.CreatedAt,
	}, nil
}

func (h *RecordActivityHandler) intensity(cmd RecordActivityCommand) points.Intensity {
	if cmd.Intensity == "" {
		return points.IntensityNormal
	}
	return points.Intensity(cmd.Intensity)
}

func (h *RecordActivityHandler) resolvePoints(ctx context.Context, cmd RecordActivityCommand, category points.Category) (int, error) {
	if cmd.Points != nil {
		return *cmd.Points, nil
	}

	cfg, err := h.configRepo.GetConfig(ctx, cmd.UserID)
	if err != nil {
		return 0, fmt.Errorf("record_activity: load points config: %w", err)
	}
	return cfg.PointsFor(category, h.intensity(cmd))
}
