package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

// AwardPointsCommand grants points outside of an activity log, for example
// a bonus from another part of the product.
type AwardPointsCommand struct {
	// ActorID is the authenticated caller.
	ActorID string

	// UserID receives the points; empty means the actor. Crediting anyone
	// else requires Privileged.
	UserID string

	// Privileged is set when the caller's token grants the award scope.
	Privileged bool

	Points   int
	Reason   string
	Category string // optional, defaults to bonus
	Metadata map[string]any

	// IdempotencyKey makes retries of the same logical award safe.
	IdempotencyKey string
}

// Validate validates the command.
func (c AwardPointsCommand) Validate() error {
	if err := shared.RequireActor("ledger", "AwardPoints", c.ActorID); err != nil {
		return err
	}
	if c.Points < 0 {
		return shared.NewDomainError("ledger", "AwardPoints", shared.ErrNegativeValue, "points cannot be negative")
	}
	if c.Points == 0 {
		return shared.NewDomainError("ledger", "AwardPoints", shared.ErrValueOutOfRange, "points must be positive")
	}
	if strings.TrimSpace(c.Reason) == "" {
		return shared.NewDomainError("ledger", "AwardPoints", shared.ErrEmptyValue, "reason is required")
	}
	if c.UserID != "" && c.UserID != c.ActorID && !c.Privileged {
		return shared.NewDomainError("ledger", "AwardPoints", shared.ErrForbidden, "cannot award points to another user")
	}
	if c.Category != "" {
		if !points.Category(strings.ToLower(c.Category)).IsLedger() {
			return shared.Validation("ledger", "AwardPoints", fmt.Sprintf("unknown category %q", c.Category))
		}
	}
	return nil
}

// AwardPointsResult mirrors the external {success, new_total} contract.
type AwardPointsResult struct {
	Success  bool             `json:"success"`
	NewTotal int              `json:"new_total"`
	Entry    *points.LogEntry `json:"entry,omitempty"`
}

// DefaultMaxAwardPoints caps a single award when no limit is configured.
const DefaultMaxAwardPoints = 1000

// AwardPointsConfig bounds explicit awards.
type AwardPointsConfig struct {
	// MaxPoints is the largest single award; zero means DefaultMaxAwardPoints.
	MaxPoints int
}

// AwardPointsHandler handles AwardPointsCommand.
type AwardPointsHandler struct {
	ledger    *PointsLedger
	maxPoints int
}

// NewAwardPointsHandler creates a new AwardPointsHandler.
func NewAwardPointsHandler(ledger *PointsLedger, config AwardPointsConfig) *AwardPointsHandler {
	if config.MaxPoints <= 0 {
		config.MaxPoints = DefaultMaxAwardPoints
	}
	return &AwardPointsHandler{ledger: ledger, maxPoints: config.MaxPoints}
}

// Handle executes the award.
func (h *AwardPointsHandler) Handle(ctx context.Context, cmd AwardPointsCommand) (*AwardPointsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.Points > h.maxPoints {
		return nil, shared.NewDomainError("ledger", "AwardPoints", shared.ErrValueOutOfRange,
			fmt.Sprintf("a single award cannot exceed %d points", h.maxPoints))
	}

	target := cmd.UserID
	if target == "" {
		target = cmd.ActorID
	}
	category := points.CategoryBonus
	if cmd.Category != "" {
		category = points.Category(strings.ToLower(cmd.Category))
	}

	metadata := make(map[string]any, len(cmd.Metadata)+1)
	for k, v := range cmd.Metadata {
		metadata[k] = v
	}
	if target != cmd.ActorID {
		metadata["awarded_by"] = cmd.ActorID
	}

	res, err := h.ledger.RecordEvent(ctx, LedgerEvent{
		UserID:         target,
		Category:       category,
		Points:         cmd.Points,
		Reason:         strings.TrimSpace(cmd.Reason),
		Source:         points.SourceAward,
		Metadata:       metadata,
		IdempotencyKey: cmd.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("award_points: %w", err)
	}

	return &AwardPointsResult{
		Success:  true,
		NewTotal: res.Stats.TotalPoints,
		Entry:    res.Entry,
	}, nil
}
