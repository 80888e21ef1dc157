// Package events provides domain event infrastructure for inter-module communication.
// Events enable loose coupling between modules - modules publish events without
// knowing who will handle them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a kind of event, namespaced by the publishing module.
type EventType string

func (t EventType) String() string { return string(t) }

// Event represents a domain event that occurred in the system.
// Events are immutable facts about something that happened.
type Event interface {
	// EventID returns the unique identifier for this event instance.
	EventID() string
	// EventType returns the type of the event (e.g., "orders.OrderPlaced").
	EventType() EventType
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string
}

// BaseEvent provides common event fields. Embed this in concrete event types.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// Publisher publishes domain events for other modules to consume.
// Publishing inside a transaction defers delivery until after commit.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Handler handles a specific type of domain event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to use ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscriber subscribes to domain events.
type Subscriber interface {
	Subscribe(eventType EventType, handler Handler) error
}
