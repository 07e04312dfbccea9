// Package events provides the event bus used to fan scan progress, log, and
// completion streams out to in-process subscribers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// Scan lifecycle events
	EventScanStarted   EventType = "scan.started"
	EventScanProgress  EventType = "scan.progress"
	EventScanLog       EventType = "scan.log"
	EventScanCompleted EventType = "scan.completed"
	EventScanPaused    EventType = "scan.paused"
	EventScanResumed   EventType = "scan.resumed"
	EventScanCancelled EventType = "scan.cancelled"
	EventScanFailed    EventType = "scan.failed"

	// Folder monitor events
	EventMonitorFileAdded   EventType = "monitor.file.added"
	EventMonitorFileRemoved EventType = "monitor.file.removed"

	// Integrity events
	EventIntegrityProgress EventType = "integrity.progress"
	EventIntegrityResult   EventType = "integrity.result"

	// Duplicate detection events
	EventDuplicateProgress EventType = "duplicates.progress"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID and timestamp.
func NewEvent(eventType EventType, title, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "system",
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// EventHandler represents a function that handles events
type EventHandler func(event Event)

// EventFilter represents filters for event subscriptions. An empty filter
// matches every event.
type EventFilter struct {
	Types   []EventType `json:"types,omitempty"`
	Sources []string    `json:"sources,omitempty"`
}

// Matches reports whether the event passes the filter.
func (f EventFilter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Sources) > 0 {
		found := false
		for _, s := range f.Sources {
			if s == event.Source {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Subscription represents an event subscription
type Subscription struct {
	ID      string       `json:"id"`
	Filter  EventFilter  `json:"filter"`
	Handler EventHandler `json:"-"`
	Created time.Time    `json:"created"`
}

// Stats represents statistics about the bus
type Stats struct {
	TotalEvents         int64            `json:"total_events"`
	DroppedEvents       int64            `json:"dropped_events"`
	EventsByType        map[string]int64 `json:"events_by_type"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
}
