package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
)

// ErrEventProcessingDepthExceeded is reported when event handlers
// trigger too many nested events.
var ErrEventProcessingDepthExceeded = errors.New("event processing depth exceeded")

// FailureObserver is told about every handler failure. Metrics implement it.
type FailureObserver interface {
	ObserveHandlerFailure(eventType string)
}

type depthKey struct{}

// Bus delivers events to registered handlers after the publishing
// transaction commits. Handlers are observers: their failures are logged
// and swallowed and never reach the publisher.
type Bus struct {
	registry HandlerRegistry
	logger   *slog.Logger
	failures FailureObserver
	maxDepth int
}

// New creates a Bus over registry.
// maxDepth limits nested event processing to prevent infinite loops (default: 10).
func New(registry HandlerRegistry, logger *slog.Logger, maxDepth int) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Bus{
		registry: registry,
		logger:   logger,
		maxDepth: maxDepth,
	}
}

// WithFailureObserver reports handler failures to o.
func (b *Bus) WithFailureObserver(o FailureObserver) *Bus {
	b.failures = o
	return b
}

// Publish implements events.Publisher.
// Inside a unit of work the events are buffered and delivered once it
// commits; a rollback discards them. Outside one they are delivered now.
func (b *Bus) Publish(ctx context.Context, evts ...events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	pending := append([]events.Event(nil), evts...)
	transaction.AfterCommit(ctx, func(ctx context.Context) {
		b.dispatch(ctx, pending)
	})
	return nil
}

func (b *Bus) dispatch(ctx context.Context, evts []events.Event) {
	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= b.maxDepth {
		for _, event := range evts {
			b.logger.Error("dropping event", slog.String("event_type", event.EventType().String()), slog.String("event_id", event.EventID()), slog.Any("error", ErrEventProcessingDepthExceeded))
		}
		return
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)

	for _, event := range evts {
		handlers := b.registry.HandlersFor(event.EventType())
		b.logger.Debug("publishing event", slog.String("event_type", event.EventType().String()), slog.String("event_id", event.EventID()), slog.Int("handler_count", len(handlers)))

		for _, handler := range handlers {
			if err := b.handle(ctx, handler, event); err != nil {
				b.logger.Error("event handler failed", slog.String("event_type", event.EventType().String()), slog.String("event_id", event.EventID()), slog.Any("error", err))
				if b.failures != nil {
					b.failures.ObserveHandlerFailure(event.EventType().String())
				}
				// Continue processing other handlers even if one fails
			}
		}
	}
}

func (b *Bus) handle(ctx context.Context, handler events.Handler, event events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

// Compile-time interface check.
var _ events.Publisher = (*Bus)(nil)
