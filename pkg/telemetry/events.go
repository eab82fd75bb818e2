package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event describes one engine occurrence published on the bus.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// RunID is the associated run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Provider is the capability provider involved, if applicable.
	Provider string `json:"provider,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event type constants.
const (
	EventTypeRunStarted     = "run.started"
	EventTypeRunCompleted   = "run.completed"
	EventTypeRunFailed      = "run.failed"
	EventTypeProviderFailed = "provider.failed"
	EventTypeDriftDetected  = "drift.detected"
	EventTypeApplyAction    = "apply.action"
)

// Event severity constants.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber receives published events on its own channel.
type EventSubscriber struct {
	C      chan Event
	bus    *EventBus
	closed bool
}

// EventBus is a small in-process publish/subscribe fan-out. Publishing
// never blocks: a subscriber that falls behind loses events, counted in
// Dropped.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[*EventSubscriber]struct{}
	dropped     int64
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[*EventSubscriber]struct{}),
	}
}

// Subscribe registers a subscriber with the given buffer size.
func (b *EventBus) Subscribe(buffer int) *EventSubscriber {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &EventSubscriber{
		C:   make(chan Event, buffer),
		bus: b,
	}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscriber and closes its channel.
func (s *EventSubscriber) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if !s.closed {
		delete(s.bus.subscribers, s)
		close(s.C)
		s.closed = true
	}
}

// Publish delivers the event to every subscriber. A nil bus is a no-op so
// engines can run without one.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub.C <- event:
		default:
			b.dropped++
		}
	}
}

// Dropped returns the number of events discarded due to full subscriber
// buffers.
func (b *EventBus) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}
