package points

import (
	"context"
	"time"
)

// AppendResult is returned by a successful ledger append.
type AppendResult struct {
	Entry  *LogEntry
	Stats  *Statistics
	Effect ApplyResult
}

// LedgerRepository is the only write path to the user totals.
type LedgerRepository interface {
	// Append inserts the entry and applies it to the user's statistics in
	// one transaction. It returns shared.ErrStatisticsNotFound when the
	// statistics row is missing and shared.ErrDuplicateEvent when the
	// idempotency key was already used.
	Append(ctx context.Context, entry *LogEntry) (*AppendResult, error)

	// ListEntries returns a user's entries dated in [from, to], newest first.
	ListEntries(ctx context.Context, userID string, from, to time.Time) ([]*LogEntry, error)

	// SumPoints returns Σ points over all of a user's entries.
	SumPoints(ctx context.Context, userID string) (int, error)
}

// StatisticsRepository reads the aggregates.
type StatisticsRepository interface {
	GetStatistics(ctx context.Context, userID string) (*Statistics, error)

	// ListStatistics returns statistics for the given users, or for every
	// user when userIDs is nil.
	ListStatistics(ctx context.Context, userIDs []string) ([]*Statistics, error)
}

// WindowAggregate is a user's ledger activity inside a date range.
type WindowAggregate struct {
	UserID     string
	Points     int
	ActiveDays []time.Time
}

// WindowRepository aggregates ledger entries over a date range.
type WindowRepository interface {
	// AggregateWindow returns one aggregate per user that has entries in
	// [from, to]. userIDs nil means every user.
	AggregateWindow(ctx context.Context, userIDs []string, from, to time.Time) ([]*WindowAggregate, error)
}

// ConfigRepository stores the per-user ActivityPointsConfig.
type ConfigRepository interface {
	// GetConfig returns the user's config merged over the defaults.
	GetConfig(ctx context.Context, userID string) (*ActivityPointsConfig, error)
	SaveCategoryConfig(ctx context.Context, userID string, category Category, cfg CategoryConfig) error
}
