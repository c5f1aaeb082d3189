package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventPointsAwarded, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return errors.New("ignored") }))

	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("u1", "e1", "bonus", "award", 5, 5)))
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("u1", 0, 1, 1)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.HandlerExecutions)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncAndPanics(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { n.Add(1); return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("u1", 0, 1, 1)))
	}
	bus.Wait()

	assert.Equal(t, int32(10), n.Load())
	assert.Equal(t, int64(10), bus.Metrics().Snapshot().HandlerFailures)

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewStreakUpdatedEvent("u1", 0, 1, 1)), ErrEventBusClosed)
}

type fakeRemote struct {
	mu       sync.Mutex
	channels []string
	messages []string
	err      error
}

func (f *fakeRemote) Publish(_ context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.(string))
	return nil
}

func TestChangeNotifier(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	remote := &fakeRemote{}
	n := NewChangeNotifier(bus, remote, nil)

	var local int
	require.NoError(t, n.Subscribe(shared.EventAchievementUnlocked, func(shared.Event) error { local++; return nil }))

	ev := shared.NewAchievementUnlockedEvent("u1", "a1", "streak_7", "Week Warrior")
	ev.BaseEvent = ev.BaseEvent.WithCorrelationID("req-1")
	require.NoError(t, n.Publish(ev))

	assert.Equal(t, 1, local)
	require.Equal(t, []string{"pubsub:progress.achievement_unlocked"}, remote.channels)

	var env shared.EventEnvelope
	require.NoError(t, json.Unmarshal([]byte(remote.messages[0]), &env))
	assert.Equal(t, shared.EventAchievementUnlocked, env.Type)
	assert.Equal(t, "u1", env.AggregateID)
	assert.Equal(t, "req-1", env.CorrelationID)
	assert.Contains(t, string(env.Payload), "streak_7")

	remote.err = errors.New("redis down")
	require.NoError(t, n.Publish(ev))
	assert.Equal(t, 2, local)
}
