// Package query contains read operations following CQRS pattern.
// Queries never modify user totals - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/streak"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Ranks a population (everyone, or the requester and accepted friends) over
// a period. Weekly and monthly are rolling windows ending today.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the leaderboard request parameters.
type GetLeaderboardQuery struct {
	Scope  string
	Period string

	// RequesterID is required for the friends scope. For global it only
	// enables the friendship status column.
	RequesterID string

	// Page and PageSize are optional; PageSize 0 returns every row.
	Page     int
	PageSize int
}

// GetLeaderboardResult contains the ranked rows.
type GetLeaderboardResult struct {
	Scope       leaderboard.Scope  `json:"scope"`
	Period      leaderboard.Period `json:"period"`
	Rows        []*leaderboard.Row `json:"rows"`
	TotalCount  int                `json:"total_count"`
	From        *time.Time         `json:"from,omitempty"`
	To          *time.Time         `json:"to,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// LeaderboardConfig contains the ranker's settings.
type LeaderboardConfig struct {
	Clock    timeutil.Clock
	Location *time.Location

	// UseCache enables the global all-time cache.
	UseCache bool

	// PositionChange enables snapshots for the friends scope.
	PositionChange bool
}

// DefaultLeaderboardConfig returns the standard configuration.
func DefaultLeaderboardConfig() LeaderboardConfig {
	return LeaderboardConfig{
		Clock:          timeutil.SystemClock{},
		Location:       time.UTC,
		UseCache:       true,
		PositionChange: true,
	}
}

// LeaderboardDeps groups the repositories the ranker reads.
type LeaderboardDeps struct {
	Users        user.Repository
	Statistics   points.StatisticsRepository
	Windows      points.WindowRepository
	Achievements achievement.Repository
	Friends      social.Repository
	Snapshots    leaderboard.SnapshotRepository

	// Cache may be nil.
	Cache leaderboard.Cache
}

// GetLeaderboardHandler handles leaderboard queries.
type GetLeaderboardHandler struct {
	deps   LeaderboardDeps
	config LeaderboardConfig
	log    *logger.Logger
}

// NewGetLeaderboardHandler creates a new leaderboard query handler.
func NewGetLeaderboardHandler(deps LeaderboardDeps, log *logger.Logger, config LeaderboardConfig) *GetLeaderboardHandler {
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock{}
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetLeaderboardHandler{
		deps:   deps,
		config: config,
		log:    log.With(logger.Component("leaderboard")),
	}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	scope, err := leaderboard.ParseScope(q.Scope)
	if err != nil {
		return nil, err
	}
	period, err := leaderboard.ParsePeriod(q.Period)
	if err != nil {
		return nil, err
	}
	if scope == leaderboard.ScopeFriends {
		if err := shared.RequireActor("leaderboard", "GetLeaderboard", q.RequesterID); err != nil {
			return nil, err
		}
	}

	today := timeutil.Today(h.config.Clock, h.config.Location)

	var ranking *leaderboard.Ranking
	switch scope {
	case leaderboard.ScopeFriends:
		ranking, err = h.friendsRanking(ctx, q.RequesterID, period, today)
	default:
		ranking, err = h.globalRanking(ctx, q.RequesterID, period, today)
	}
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result := &GetLeaderboardResult{
		Scope:       scope,
		Period:      period,
		TotalCount:  ranking.Count(),
		GeneratedAt: h.config.Clock.Now().UTC(),
	}
	if from, to, ok := period.Window(today); ok {
		result.From, result.To = &from, &to
	}
	if q.PageSize > 0 {
		result.Rows = ranking.Page(shared.NewPagination(q.Page, q.PageSize))
	} else {
		result.Rows = ranking.Rows()
	}

	h.log.Debug("leaderboard computed",
		logger.String("scope", string(scope)),
		logger.Period(string(period)),
		logger.Int("rows", result.TotalCount),
	)
	return result, nil
}

// GlobalRanking ranks every user over the period without any
// requester-specific fields.
func (h *GetLeaderboardHandler) GlobalRanking(ctx context.Context, period leaderboard.Period) (*leaderboard.Ranking, error) {
	return h.globalRanking(ctx, "", period, timeutil.Today(h.config.Clock, h.config.Location))
}

func (h *GetLeaderboardHandler) globalRanking(ctx context.Context, requesterID string, period leaderboard.Period, today time.Time) (*leaderboard.Ranking, error) {
	cacheable := h.config.UseCache && h.deps.Cache != nil && period == leaderboard.PeriodAllTime

	var ranking *leaderboard.Ranking
	if cacheable {
		rows, err := h.deps.Cache.Get(ctx, leaderboard.ScopeGlobal, period)
		if err != nil {
			h.log.Warn("leaderboard cache read failed", logger.Err(err))
		} else if rows != nil {
			ranking = leaderboard.Rank(cloneRows(rows))
		}
	}

	if ranking == nil {
		ids, err := h.deps.Users.ListIDs(ctx)
		if err != nil {
			return nil, err
		}
		rows, err := h.buildRows(ctx, ids, true, period, today)
		if err != nil {
			return nil, err
		}
		ranking = leaderboard.Rank(rows)

		if cacheable {
			if err := h.deps.Cache.Set(ctx, leaderboard.ScopeGlobal, period, cloneRows(ranking.Rows())); err != nil {
				h.log.Warn("leaderboard cache write failed", logger.Err(err))
			}
		}
	}

	if requesterID != "" && h.deps.Friends != nil {
		fs, err := h.deps.Friends.ListForUser(ctx, requesterID)
		if err != nil {
			return nil, err
		}
		ranking.AttachFriendship(requesterID, social.StatusMap(requesterID, fs))
	}
	return ranking, nil
}

func (h *GetLeaderboardHandler) friendsRanking(ctx context.Context, requesterID string, period leaderboard.Period, today time.Time) (*leaderboard.Ranking, error) {
	fs, err := h.deps.Friends.ListForUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	ids := append([]string{requesterID}, social.AcceptedFriendIDs(requesterID, fs)...)

	rows, err := h.buildRows(ctx, ids, false, period, today)
	if err != nil {
		return nil, err
	}
	ranking := leaderboard.Rank(rows)

	if h.config.PositionChange && h.deps.Snapshots != nil {
		h.applySnapshot(ctx, requesterID, period, ranking)
	}
	return ranking, nil
}

// applySnapshot sets positionChange from the previous snapshot and stores
// the new one. Snapshot failures only cost the delta column.
func (h *GetLeaderboardHandler) applySnapshot(ctx context.Context, ownerID string, period leaderboard.Period, ranking *leaderboard.Ranking) {
	prev, err := h.deps.Snapshots.GetLatest(ctx, ownerID, period)
	switch {
	case err == nil:
		ranking.ApplyPositionChange(prev)
	case shared.IsNotFound(err):
	default:
		h.log.Warn("failed to load ranking snapshot", logger.UserID(ownerID), logger.Err(err))
	}

	snap := leaderboard.NewSnapshot(ownerID, period, ranking, h.config.Clock.Now().UTC())
	if err := h.deps.Snapshots.Save(ctx, snap); err != nil {
		h.log.Warn("failed to save ranking snapshot", logger.UserID(ownerID), logger.Err(err))
	}
}

// buildRows produces one row per id. all means ids is the whole user base,
// so repositories are queried without a filter.
func (h *GetLeaderboardHandler) buildRows(ctx context.Context, ids []string, all bool, period leaderboard.Period, today time.Time) ([]*leaderboard.Row, error) {
	filter := ids
	if all {
		filter = nil
	}

	names, err := h.deps.Users.DisplayNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	rows := make(map[string]*leaderboard.Row, len(ids))
	for _, id := range ids {
		rows[id] = &leaderboard.Row{UserID: id, DisplayName: names[id]}
	}

	if from, to, ok := period.Window(today); ok {
		if err := h.fillWindow(ctx, rows, filter, from, to, today); err != nil {
			return nil, err
		}
	} else {
		stats, err := h.deps.Statistics.ListStatistics(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, s := range stats {
			row, ok := rows[s.UserID]
			if !ok {
				continue
			}
			row.TotalPoints = s.TotalPoints
			row.CurrentStreak = s.CurrentStreak
			row.AchievementsUnlocked = s.AchievementsUnlocked
		}
	}

	out := make([]*leaderboard.Row, 0, len(rows))
	for _, id := range ids {
		out = append(out, rows[id])
	}
	return out, nil
}

func (h *GetLeaderboardHandler) fillWindow(ctx context.Context, rows map[string]*leaderboard.Row, filter []string, from, to, today time.Time) error {
	aggs, err := h.deps.Windows.AggregateWindow(ctx, filter, from, to)
	if err != nil {
		return err
	}
	for _, a := range aggs {
		row, ok := rows[a.UserID]
		if !ok {
			continue
		}
		row.TotalPoints = a.Points
		row.CurrentStreak = streak.Derive(a.ActiveDays, today).CurrentStreak
	}

	// Achievement timestamps are instants; the window is calendar days in
	// the app timezone, so [from 00:00, to+1 00:00) in that zone.
	start := timeutil.StartOfDay(from, h.config.Location)
	end := timeutil.StartOfDay(timeutil.AddDays(to, 1), h.config.Location)
	counts, err := h.deps.Achievements.CountInWindow(ctx, filter, start, end)
	if err != nil {
		return err
	}
	for id, n := range counts {
		if row, ok := rows[id]; ok {
			row.AchievementsUnlocked = n
		}
	}
	return nil
}

func cloneRows(rows []*leaderboard.Row) []*leaderboard.Row {
	out := make([]*leaderboard.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
