package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// EventBus defines the interface for the event bus system
type EventBus interface {
	// Publish publishes an event, blocking until accepted or ctx is done
	Publish(ctx context.Context, event Event) error

	// PublishAsync publishes an event without blocking; events are dropped
	// when the internal buffer is full
	PublishAsync(event Event) error

	// Subscribe subscribes to events matching the filter
	Subscribe(filter EventFilter, handler EventHandler) *Subscription

	// Unsubscribe removes a subscription
	Unsubscribe(subscriptionID string) error

	// RecentEvents returns the most recent events, newest last
	RecentEvents(limit int) []Event

	// GetStats returns bus statistics
	GetStats() Stats

	// Start starts the dispatch loop
	Start(ctx context.Context) error

	// Stop stops the bus gracefully
	Stop(ctx context.Context) error
}

// Config controls bus buffering.
type Config struct {
	BufferSize   int
	RecentEvents int
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 1024, RecentEvents: 200}
}

type eventBus struct {
	config Config
	logger hclog.Logger

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	recentEvents []Event
	totalEvents  int64
	dropped      int64
	byType       map[string]int64
}

// NewEventBus creates a new event bus instance
func NewEventBus(config Config, logger hclog.Logger) EventBus {
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}
	if config.RecentEvents <= 0 {
		config.RecentEvents = 200
	}
	return &eventBus{
		config:        config,
		logger:        logger,
		subscriptions: make(map[string]*Subscription),
		eventChannel:  make(chan Event, config.BufferSize),
		recentEvents:  make([]Event, 0, config.RecentEvents),
		byType:        make(map[string]int64),
		stopCh:        make(chan struct{}),
	}
}

func (eb *eventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.running {
		return fmt.Errorf("event bus is already running")
	}
	eb.running = true
	eb.stopCh = make(chan struct{})

	eb.wg.Add(1)
	go eb.processEvents()

	eb.logger.Debug("event bus started", "buffer_size", eb.config.BufferSize)
	return nil
}

func (eb *eventBus) Stop(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.running {
		eb.mu.Unlock()
		return nil
	}
	eb.running = false
	eb.mu.Unlock()

	close(eb.stopCh)

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Debug("event bus stopped")
		return nil
	case <-ctx.Done():
		eb.logger.Warn("event bus stop timed out")
		return ctx.Err()
	}
}

func (eb *eventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	running := eb.running
	eb.mu.RUnlock()
	if !running {
		return fmt.Errorf("event bus is not running")
	}

	eb.stamp(&event)

	select {
	case eb.eventChannel <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (eb *eventBus) PublishAsync(event Event) error {
	eb.mu.RLock()
	running := eb.running
	eb.mu.RUnlock()
	if !running {
		return fmt.Errorf("event bus is not running")
	}

	eb.stamp(&event)

	select {
	case eb.eventChannel <- event:
		return nil
	default:
		eb.mu.Lock()
		eb.dropped++
		eb.mu.Unlock()
		eb.logger.Warn("event channel full, dropping event", "event_type", event.Type, "event_id", event.ID)
		return fmt.Errorf("event channel full")
	}
}

func (eb *eventBus) stamp(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
}

func (eb *eventBus) Subscribe(filter EventFilter, handler EventHandler) *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}

	eb.mu.Lock()
	eb.subscriptions[sub.ID] = sub
	eb.mu.Unlock()

	return sub
}

func (eb *eventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, exists := eb.subscriptions[subscriptionID]; !exists {
		return fmt.Errorf("subscription %s not found", subscriptionID)
	}
	delete(eb.subscriptions, subscriptionID)
	return nil
}

func (eb *eventBus) RecentEvents(limit int) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	n := len(eb.recentEvents)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, limit)
	copy(out, eb.recentEvents[n-limit:])
	return out
}

func (eb *eventBus) GetStats() Stats {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	byType := make(map[string]int64, len(eb.byType))
	for k, v := range eb.byType {
		byType[k] = v
	}
	return Stats{
		TotalEvents:         eb.totalEvents,
		DroppedEvents:       eb.dropped,
		EventsByType:        byType,
		ActiveSubscriptions: len(eb.subscriptions),
	}
}

// processEvents drains the event channel and fans events out to matching
// subscribers. Handlers run on the dispatch goroutine; they must not block.
func (eb *eventBus) processEvents() {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.eventChannel:
			eb.dispatch(event)
		case <-eb.stopCh:
			// Drain whatever is left so a final completion event is not lost.
			for {
				select {
				case event := <-eb.eventChannel:
					eb.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (eb *eventBus) dispatch(event Event) {
	eb.mu.Lock()
	eb.totalEvents++
	eb.byType[string(event.Type)]++
	if len(eb.recentEvents) >= eb.config.RecentEvents {
		eb.recentEvents = eb.recentEvents[1:]
	}
	eb.recentEvents = append(eb.recentEvents, event)
	subs := make([]*Subscription, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		subs = append(subs, sub)
	}
	eb.mu.Unlock()

	for _, sub := range subs {
		if sub.Filter.Matches(event) {
			sub.Handler(event)
		}
	}
}
