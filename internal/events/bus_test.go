package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningBus(t *testing.T) EventBus {
	t.Helper()
	bus := NewEventBus(DefaultConfig(), hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { bus.Stop(context.Background()) })
	return bus
}

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	bus := newRunningBus(t)

	var mu sync.Mutex
	var scanEvents, allEvents []Event

	bus.Subscribe(EventFilter{Types: []EventType{EventScanProgress}}, func(event Event) {
		mu.Lock()
		scanEvents = append(scanEvents, event)
		mu.Unlock()
	})
	bus.Subscribe(EventFilter{}, func(event Event) {
		mu.Lock()
		allEvents = append(allEvents, event)
		mu.Unlock()
	})

	require.NoError(t, bus.PublishAsync(NewEvent(EventScanProgress, "p", "1")))
	require.NoError(t, bus.PublishAsync(NewEvent(EventScanLog, "l", "2")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(allEvents) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, scanEvents, 1)
	assert.Equal(t, EventScanProgress, scanEvents[0].Type)
	assert.NotEmpty(t, scanEvents[0].ID)
	assert.False(t, scanEvents[0].Timestamp.IsZero())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := newRunningBus(t)

	var mu sync.Mutex
	count := 0
	sub := bus.Subscribe(EventFilter{}, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	require.NoError(t, bus.PublishAsync(NewEvent(EventScanLog, "a", "")))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Unsubscribe(sub.ID))
	require.NoError(t, bus.PublishAsync(NewEvent(EventScanLog, "b", "")))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)

	assert.Error(t, bus.Unsubscribe(sub.ID))
}

func TestRecentEventsKeepsNewest(t *testing.T) {
	bus := NewEventBus(Config{BufferSize: 16, RecentEvents: 3}, hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))
	defer bus.Stop(context.Background())

	for _, msg := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, bus.PublishAsync(NewEvent(EventScanLog, "t", msg)))
	}

	require.Eventually(t, func() bool {
		return bus.GetStats().TotalEvents == 5
	}, 2*time.Second, 5*time.Millisecond)

	recent := bus.RecentEvents(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "3", recent[0].Message)
	assert.Equal(t, "5", recent[2].Message)
}

func TestPublishFailsWhenStopped(t *testing.T) {
	bus := NewEventBus(DefaultConfig(), hclog.NewNullLogger())
	assert.Error(t, bus.PublishAsync(NewEvent(EventScanLog, "x", "")))

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Stop(context.Background()))
	assert.Error(t, bus.PublishAsync(NewEvent(EventScanLog, "x", "")))
}

func TestFilterMatching(t *testing.T) {
	event := NewEvent(EventScanProgress, "t", "m")
	event.Source = "scanner"

	assert.True(t, EventFilter{}.Matches(event))
	assert.True(t, EventFilter{Types: []EventType{EventScanProgress}}.Matches(event))
	assert.False(t, EventFilter{Types: []EventType{EventScanLog}}.Matches(event))
	assert.True(t, EventFilter{Sources: []string{"scanner"}}.Matches(event))
	assert.False(t, EventFilter{Sources: []string{"other"}}.Matches(event))
	assert.False(t, EventFilter{
		Types:   []EventType{EventScanProgress},
		Sources: []string{"other"},
	}.Matches(event))
}
