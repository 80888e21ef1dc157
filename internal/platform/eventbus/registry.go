// Package eventbus delivers domain events between modules inside one process.
// Delivery is deferred until the publishing unit of work commits.
package eventbus

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/unitygrave/cardshop/modules/shared/events"
)

var ErrInvalidSubscription = errors.New("subscription needs an event type and a handler")

// HandlerRegistry is the read side the Bus dispatches from.
type HandlerRegistry interface {
	HandlersFor(eventType events.EventType) []events.Handler
}

// EventHandlerRegistry holds the handlers each module subscribed at startup.
// Handlers for one type run in subscription order.
type EventHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]events.Handler
	logger   *slog.Logger
}

func NewEventHandlerRegistry(logger *slog.Logger) *EventHandlerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandlerRegistry{
		handlers: make(map[events.EventType][]events.Handler),
		logger:   logger,
	}
}

func (r *EventHandlerRegistry) Subscribe(eventType events.EventType, handler events.Handler) error {
	if eventType == "" || handler == nil {
		return ErrInvalidSubscription
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[eventType] = append(r.handlers[eventType], handler)
	r.logger.Debug("subscribed to event",
		slog.String("event_type", eventType.String()),
		slog.Int("handler_count", len(r.handlers[eventType])))
	return nil
}

// HandlersFor returns a copy, so later subscriptions never race a dispatch.
func (r *EventHandlerRegistry) HandlersFor(eventType events.EventType) []events.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.handlers[eventType])
}

// Subscriptions reports how many handlers each event type has.
func (r *EventHandlerRegistry) Subscriptions() map[events.EventType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[events.EventType]int, len(r.handlers))
	for t, hs := range r.handlers {
		out[t] = len(hs)
	}
	return out
}

var (
	_ events.Subscriber = (*EventHandlerRegistry)(nil)
	_ HandlerRegistry   = (*EventHandlerRegistry)(nil)
)
