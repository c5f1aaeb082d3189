package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// LedgerRepository implements the points repositories over DB.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new in-memory ledger.
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var (
	_ points.LedgerRepository     = (*LedgerRepository)(nil)
	_ points.StatisticsRepository = (*LedgerRepository)(nil)
	_ points.WindowRepository     = (*LedgerRepository)(nil)
)

// Append implements points.LedgerRepository.
func (r *LedgerRepository) Append(ctx context.Context, entry *points.LogEntry) (*points.AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stats, ok := r.db.stats[entry.UserID]
	if !ok {
		return nil, shared.ErrStatisticsNotFound
	}
	if entry.IdempotencyKey != "" {
		if _, dup := r.db.idempotency[entry.IdempotencyKey]; dup {
			return nil, shared.ErrDuplicateEvent
		}
	}

	day := timeutil.Normalize(entry.Date)
	prev := timeutil.AddDays(day, -1)
	dc := points.DayContext{FirstEntryOfDay: true}
	history := stats.NeedsHistory(day)
	for _, e := range r.db.entries[entry.UserID] {
		switch {
		case e.Date.Equal(day):
			dc.FirstEntryOfDay = false
		case e.Date.Equal(prev):
			dc.PreviousDayActive = true
		}
		if history {
			dc.ActiveDays = append(dc.ActiveDays, e.Date)
		}
	}

	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Date = day
	stored.CreatedAt = r.db.now().UTC()

	r.db.entries[entry.UserID] = append(r.db.entries[entry.UserID], &stored)
	if stored.IdempotencyKey != "" {
		r.db.idempotency[stored.IdempotencyKey] = struct{}{}
	}

	effect := stats.Apply(&stored, dc)
	stats.UpdatedAt = stored.CreatedAt

	out := stored
	return &points.AppendResult{Entry: &out, Stats: copyStats(stats), Effect: effect}, nil
}

// ListEntries implements points.LedgerRepository.
func (r *LedgerRepository) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]*points.LogEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []*points.LogEntry
	for _, e := range r.db.entries[userID] {
		if timeutil.InRange(e.Date, from, to) {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SumPoints implements points.LedgerRepository.
func (r *LedgerRepository) SumPoints(ctx context.Context, userID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	sum := 0
	for _, e := range r.db.entries[userID] {
		sum += e.Points
	}
	return sum, nil
}

// GetStatistics implements points.StatisticsRepository.
func (r *LedgerRepository) GetStatistics(ctx context.Context, userID string) (*points.Statistics, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.stats[userID]
	if !ok {
		return nil, shared.ErrStatisticsNotFound
	}
	return copyStats(s), nil
}

// ListStatistics implements points.StatisticsRepository.
func (r *LedgerRepository) ListStatistics(ctx context.Context, userIDs []string) ([]*points.Statistics, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	set := filterSet(userIDs)
	out := make([]*points.Statistics, 0, len(r.db.stats))
	for id, s := range r.db.stats {
		if included(set, id) {
			out = append(out, copyStats(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// AggregateWindow implements points.WindowRepository.
func (r *LedgerRepository) AggregateWindow(ctx context.Context, userIDs []string, from, to time.Time) ([]*points.WindowAggregate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	set := filterSet(userIDs)
	var out []*points.WindowAggregate
	for id, entries := range r.db.entries {
		if !included(set, id) {
			continue
		}
		agg := &points.WindowAggregate{UserID: id}
		seen := make(map[time.Time]struct{})
		for _, e := range entries {
			if !timeutil.InRange(e.Date, from, to) {
				continue
			}
			agg.Points += e.Points
			if _, ok := seen[e.Date]; !ok {
				seen[e.Date] = struct{}{}
				agg.ActiveDays = append(agg.ActiveDays, e.Date)
			}
		}
		if len(agg.ActiveDays) > 0 {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
