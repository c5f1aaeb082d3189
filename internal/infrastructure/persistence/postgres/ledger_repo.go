package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/retry"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements the points ledger, statistics and window
// repositories over activity_log_entries and user_statistics.
type LedgerRepository struct {
	conn    *Connection
	retrier *retry.Retrier
	now     func() time.Time
}

// NewLedgerRepository creates a new LedgerRepository. Retried appends are
// logged at warn level on log, which may be nil.
func NewLedgerRepository(conn *Connection, log *logger.Logger) *LedgerRepository {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("ledger_repository"))
	return &LedgerRepository{
		conn: conn,
		retrier: retry.LedgerRetrier(IsSerializationFailure, func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying ledger append",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
		now: time.Now,
	}
}

var (
	_ points.LedgerRepository     = (*LedgerRepository)(nil)
	_ points.StatisticsRepository = (*LedgerRepository)(nil)
	_ points.WindowRepository     = (*LedgerRepository)(nil)
)

const statisticsColumns = `user_id, total_points, current_streak, longest_streak,
	achievements_unlocked, activities_logged, last_activity_date, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Append implements points.LedgerRepository. The statistics row is locked
// with FOR UPDATE before the day context is read, so two appends for the
// same user serialize and the additive total update cannot be lost.
// Deadlock victims are retried; a conflict that survives the retries is
// reported as shared.ErrConflict.
func (r *LedgerRepository) Append(ctx context.Context, entry *points.LogEntry) (*points.AppendResult, error) {
	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Date = timeutil.Normalize(entry.Date)
	stored.CreatedAt = r.now().UTC()

	metadata, err := json.Marshal(nonNilMetadata(stored.Metadata))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var result *points.AppendResult
	err = r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			stats, err := scanStatistics(tx.QueryRow(ctx,
				`SELECT `+statisticsColumns+` FROM user_statistics WHERE user_id = $1 FOR UPDATE`,
				stored.UserID))
			if err != nil {
				return err
			}

			var dc points.DayContext
			err = tx.QueryRow(ctx, `
				SELECT
					NOT EXISTS (SELECT 1 FROM activity_log_entries WHERE user_id = $1 AND date = $2),
					EXISTS (SELECT 1 FROM activity_log_entries WHERE user_id = $1 AND date = $3)
			`, stored.UserID, stored.Date, timeutil.AddDays(stored.Date, -1)).Scan(&dc.FirstEntryOfDay, &dc.PreviousDayActive)
			if err != nil {
				return fmt.Errorf("failed to read day context: %w", err)
			}
			if dc.FirstEntryOfDay && stats.NeedsHistory(stored.Date) {
				if dc.ActiveDays, err = activeDays(ctx, tx, stored.UserID); err != nil {
					return err
				}
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO activity_log_entries (
					id, user_id, category, activity_name, points, date, time_of_day,
					duration_minutes, notes, source, metadata, idempotency_key, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), $10, $11, NULLIF($12, ''), $13)
			`,
				stored.ID,
				stored.UserID,
				string(stored.Category),
				stored.ActivityName,
				stored.Points,
				stored.Date,
				stored.Time,
				stored.DurationMinutes,
				stored.Notes,
				string(stored.Source),
				metadata,
				stored.IdempotencyKey,
				stored.CreatedAt,
			)
			if err != nil {
				if IsUniqueViolation(err) {
					return shared.ErrDuplicateEvent
				}
				return fmt.Errorf("failed to insert ledger entry: %w", err)
			}

			activities := stats.ActivitiesLogged
			effect := stats.Apply(&stored, dc)
			stats.UpdatedAt = stored.CreatedAt

			_, err = tx.Exec(ctx, `
				UPDATE user_statistics SET
					total_points = total_points + $2,
					activities_logged = activities_logged + $3,
					current_streak = $4,
					longest_streak = $5,
					last_activity_date = $6,
					updated_at = $7
				WHERE user_id = $1
			`,
				stored.UserID,
				stored.Points,
				stats.ActivitiesLogged-activities,
				stats.CurrentStreak,
				stats.LongestStreak,
				stats.LastActivityDate,
				stats.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to update statistics: %w", err)
			}

			out := stored
			result = &points.AppendResult{Entry: &out, Stats: stats, Effect: effect}
			return nil
		})
	})
	if err != nil {
		if IsSerializationFailure(err) {
			return nil, shared.WrapError("ledger", "RecordEvent", shared.ErrConflict, "concurrent write to user statistics", err)
		}
		return nil, err
	}
	return result, nil
}

// activeDays returns the distinct dates a user has entries on. The caller
// holds the statistics row lock.
func activeDays(ctx context.Context, tx pgx.Tx, userID string) ([]time.Time, error) {
	rows, err := tx.Query(ctx,
		`SELECT DISTINCT date FROM activity_log_entries WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read active days: %w", err)
	}
	days, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("failed to scan active days: %w", err)
	}
	return days, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// ListEntries implements points.LedgerRepository.
func (r *LedgerRepository) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]*points.LogEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, category, activity_name, points, date,
			   COALESCE(time_of_day, ''), duration_minutes, COALESCE(notes, ''),
			   source, metadata, COALESCE(idempotency_key, ''), created_at
		FROM activity_log_entries
		WHERE user_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date DESC, created_at DESC
	`, userID, timeutil.Normalize(from), timeutil.Normalize(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var out []*points.LogEntry
	for rows.Next() {
		var (
			e        points.LogEntry
			category string
			source   string
			metadata []byte
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &category, &e.ActivityName, &e.Points, &e.Date,
			&e.Time, &e.DurationMinutes, &e.Notes,
			&source, &metadata, &e.IdempotencyKey, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Category = points.Category(category)
		e.Source = points.Source(source)
		e.Date = timeutil.Normalize(e.Date)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
			if len(e.Metadata) == 0 {
				e.Metadata = nil
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SumPoints implements points.LedgerRepository.
func (r *LedgerRepository) SumPoints(ctx context.Context, userID string) (int, error) {
	var sum int
	err := r.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM activity_log_entries WHERE user_id = $1`,
		userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return sum, nil
}

// GetStatistics implements points.StatisticsRepository.
func (r *LedgerRepository) GetStatistics(ctx context.Context, userID string) (*points.Statistics, error) {
	return scanStatistics(r.conn.QueryRow(ctx,
		`SELECT `+statisticsColumns+` FROM user_statistics WHERE user_id = $1`, userID))
}

// ListStatistics implements points.StatisticsRepository.
func (r *LedgerRepository) ListStatistics(ctx context.Context, userIDs []string) ([]*points.Statistics, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+statisticsColumns+`
		FROM user_statistics
		WHERE $1::text[] IS NULL OR user_id = ANY($1)
		ORDER BY user_id
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	var out []*points.Statistics
	for rows.Next() {
		s, err := scanStatistics(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AggregateWindow implements points.WindowRepository.
func (r *LedgerRepository) AggregateWindow(ctx context.Context, userIDs []string, from, to time.Time) ([]*points.WindowAggregate, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, SUM(points), array_agg(DISTINCT date ORDER BY date)
		FROM activity_log_entries
		WHERE date BETWEEN $1 AND $2
		  AND ($3::text[] IS NULL OR user_id = ANY($3))
		GROUP BY user_id
		ORDER BY user_id
	`, timeutil.Normalize(from), timeutil.Normalize(to), userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate window: %w", err)
	}
	defer rows.Close()

	var out []*points.WindowAggregate
	for rows.Next() {
		agg := &points.WindowAggregate{}
		if err := rows.Scan(&agg.UserID, &agg.Points, &agg.ActiveDays); err != nil {
			return nil, fmt.Errorf("failed to scan window aggregate: %w", err)
		}
		for i, d := range agg.ActiveDays {
			agg.ActiveDays[i] = timeutil.Normalize(d)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanStatistics(row pgx.Row) (*points.Statistics, error) {
	var (
		s    points.Statistics
		last *time.Time
	)
	err := row.Scan(
		&s.UserID,
		&s.TotalPoints,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.AchievementsUnlocked,
		&s.ActivitiesLogged,
		&last,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrStatisticsNotFound
		}
		return nil, fmt.Errorf("failed to scan statistics: %w", err)
	}
	if last != nil {
		d := timeutil.Normalize(*last)
		s.LastActivityDate = &d
	}
	return &s, nil
}

func nonNilMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
