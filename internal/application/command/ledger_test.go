package command_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/command"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/persistence/memory"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

type fixture struct {
	db     *memory.DB
	repo   *memory.LedgerRepository
	config *memory.ConfigRepository
	ledger *command.PointsLedger
	events *recordingPublisher
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

var today = timeutil.Date(2024, time.March, 10)

func newFixture(t *testing.T, userIDs ...string) *fixture {
	t.Helper()

	db := memory.NewDB()
	users := memory.NewUserRepository(db)
	for _, id := range userIDs {
		u, err := user.New(id, "user_"+id, "User "+id, today)
		require.NoError(t, err)
		require.NoError(t, users.Create(context.Background(), u))
	}

	repo := memory.NewLedgerRepository(db)
	pub := &recordingPublisher{}
	ledger := command.NewPointsLedger(repo, nil, pub, nil, command.PointsLedgerConfig{
		Clock: timeutil.FixedClock{T: today.Add(9 * time.Hour)},
	})
	return &fixture{db: db, repo: repo, config: memory.NewConfigRepository(db), ledger: ledger, events: pub}
}

func (f *fixture) log(t *testing.T, userID string, pts int, day time.Time) *command.LedgerResult {
	t.Helper()
	res, err := f.ledger.RecordEvent(context.Background(), command.LedgerEvent{
		UserID:   userID,
		Category: points.CategoryFitness,
		Points:   pts,
		Reason:   "Run",
		Source:   points.SourceActivity,
		Date:     day,
	})
	require.NoError(t, err)
	return res
}

func TestRecordEvent_StreakScenario(t *testing.T) {
	f := newFixture(t, "u1")
	day1 := timeutil.Date(2024, time.March, 1)

	f.log(t, "u1", 100, day1)
	res := f.log(t, "u1", 50, timeutil.AddDays(day1, 1))

	assert.Equal(t, 2, res.Stats.CurrentStreak)
	assert.Equal(t, 2, res.Stats.LongestStreak)
	assert.Equal(t, 150, res.Stats.TotalPoints)

	res = f.log(t, "u1", 0, timeutil.AddDays(day1, 3))
	assert.Equal(t, 1, res.Stats.CurrentStreak)
	assert.Equal(t, 2, res.Stats.LongestStreak)
	assert.Equal(t, 150, res.Stats.TotalPoints)
}

func TestRecordEvent_RejectsFutureDate(t *testing.T) {
	f := newFixture(t, "u1")

	_, err := f.ledger.RecordEvent(context.Background(), command.LedgerEvent{
		UserID: "u1", Category: points.CategoryFitness, Points: 10, Reason: "Run",
		Source: points.SourceActivity, Date: timeutil.AddDays(today, 365),
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	start := timeutil.AddDays(today, -4)
	var res *command.LedgerResult
	for i := 0; i < 5; i++ {
		res = f.log(t, "u1", 10, timeutil.AddDays(start, i))
	}
	assert.Equal(t, 5, res.Stats.CurrentStreak)
	assert.Equal(t, 5, res.Stats.LongestStreak)
	assert.Equal(t, 50, res.Stats.TotalPoints)
}

func TestRecordEvent_BackfillJoinsRuns(t *testing.T) {
	f := newFixture(t, "u1")
	day1 := timeutil.Date(2024, time.March, 1)

	f.log(t, "u1", 10, day1)
	res := f.log(t, "u1", 10, timeutil.AddDays(day1, 2))
	require.Equal(t, 1, res.Stats.CurrentStreak)

	res = f.log(t, "u1", 10, timeutil.AddDays(day1, 1))

	assert.True(t, res.StreakChanged)
	assert.Equal(t, 3, res.Stats.CurrentStreak)
	assert.Equal(t, 3, res.Stats.LongestStreak)
	require.NotNil(t, res.Stats.LastActivityDate)
	assert.True(t, res.Stats.LastActivityDate.Equal(timeutil.AddDays(day1, 2)))
}

func TestRecordEvent_ConcurrentWritersLoseNothing(t *testing.T) {
	f := newFixture(t, "u1")
	const writers, pts = 50, 7

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RecordEvent(context.Background(), command.LedgerEvent{
				UserID: "u1", Category: points.CategoryFitness, Points: pts,
				Reason: "Run", Source: points.SourceActivity,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := f.repo.GetStatistics(context.Background(), "u1")
	require.NoError(t, err)
	sum, err := f.repo.SumPoints(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, writers*pts, stats.TotalPoints)
	assert.Equal(t, writers*pts, sum)
	assert.Equal(t, writers, stats.ActivitiesLogged)
	assert.Equal(t, 1, stats.CurrentStreak)
}

func TestRecordEvent_SameDayCountsOnce(t *testing.T) {
	f := newFixture(t, "u1")
	day := timeutil.Date(2024, time.March, 1)

	first := f.log(t, "u1", 10, day)
	assert.True(t, first.StreakChanged)

	for i := 0; i < 3; i++ {
		res := f.log(t, "u1", 10, day)
		assert.False(t, res.StreakChanged)
		assert.Equal(t, 1, res.Stats.CurrentStreak)
	}
}

func TestRecordEvent_TotalEqualsLedgerSum(t *testing.T) {
	f := newFixture(t, "u1")
	for i, pts := range []int{10, 0, 35, 7, 120} {
		f.log(t, "u1", pts, timeutil.AddDays(today, -i))
	}

	stats, err := f.repo.GetStatistics(context.Background(), "u1")
	require.NoError(t, err)
	sum, err := f.repo.SumPoints(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, sum, stats.TotalPoints)
	assert.Equal(t, 172, stats.TotalPoints)
	assert.LessOrEqual(t, stats.CurrentStreak, stats.LongestStreak)
	assert.Equal(t, 5, stats.ActivitiesLogged)
}

func TestRecordEvent_DefaultsToToday(t *testing.T) {
	f := newFixture(t, "u1")

	res := f.log(t, "u1", 5, time.Time{})

	assert.True(t, res.Entry.Date.Equal(today))
	require.NotNil(t, res.Stats.LastActivityDate)
	assert.True(t, res.Stats.LastActivityDate.Equal(today))
}

func TestRecordEvent_ValidationWritesNothing(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	cases := []struct {
		name string
		ev   command.LedgerEvent
		kind error
	}{
		{
			name: "negative points",
			ev:   command.LedgerEvent{UserID: "u1", Category: points.CategoryFitness, Points: -1, Reason: "x", Source: points.SourceActivity},
			kind: shared.ErrNegativeValue,
		},
		{
			name: "unknown category",
			ev:   command.LedgerEvent{UserID: "u1", Category: "unknown", Points: 1, Reason: "x", Source: points.SourceActivity},
			kind: shared.ErrValidation,
		},
		{
			name: "no actor",
			ev:   command.LedgerEvent{Category: points.CategoryFitness, Points: 1, Reason: "x", Source: points.SourceActivity},
			kind: shared.ErrNotAuthenticated,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.RecordEvent(ctx, tc.ev)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
		})
	}

	stats, err := f.repo.GetStatistics(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPoints)
	assert.Empty(t, f.events.events)
}

func TestRecordEvent_MissingStatistics(t *testing.T) {
	f := newFixture(t, "u1")
	f.db.DropStatistics("u1")

	_, err := f.ledger.RecordEvent(context.Background(), command.LedgerEvent{
		UserID: "u1", Category: points.CategoryFitness, Points: 10, Reason: "Run", Source: points.SourceActivity,
	})

	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestRecordEvent_DuplicateKeyRejected(t *testing.T) {
	f := newFixture(t, "u1")
	ev := command.LedgerEvent{
		UserID: "u1", Category: points.CategoryBonus, Points: 10, Reason: "Bonus",
		Source: points.SourceAward, IdempotencyKey: "k-1",
	}

	_, err := f.ledger.RecordEvent(context.Background(), ev)
	require.NoError(t, err)

	_, err = f.ledger.RecordEvent(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrDuplicateEvent))
	assert.True(t, shared.IsAlreadyExists(err))

	sum, err := f.repo.SumPoints(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, sum)
}

func TestRecordEvent_PublishesEvents(t *testing.T) {
	f := newFixture(t, "u1")

	f.log(t, "u1", 10, today)
	f.log(t, "u1", 10, today)

	assert.Equal(t, []shared.EventType{
		shared.EventActivityLogged,
		shared.EventStreakUpdated,
		shared.EventActivityLogged,
	}, f.events.types())
}

type countingEvaluator struct {
	calls int
	err   error
}

func (e *countingEvaluator) Evaluate(context.Context, string) error {
	e.calls++
	return e.err
}

func TestRecordEvent_EvaluatorFailureIsNotReturned(t *testing.T) {
	f := newFixture(t, "u1")
	eval := &countingEvaluator{err: errors.New("boom")}
	f.ledger.SetEvaluator(eval)

	res := f.log(t, "u1", 10, today)

	assert.Equal(t, 1, eval.calls)
	assert.Equal(t, 10, res.Stats.TotalPoints)
}
