// Package notifications sends customer messages for order events.
package notifications

import (
	"log/slog"

	"github.com/unitygrave/cardshop/modules/notifications/application/eventhandlers"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
)

// Module represents the notification module entry point.
type Module struct{}

type Config struct {
	EventSubscriber events.Subscriber
	// Sender defaults to logging the message.
	Sender eventhandlers.Sender
	Logger *slog.Logger
}

// New initializes the notification module and subscribes to events.
func New(cfg Config) *Module {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "notifications")

	sender := cfg.Sender
	if sender == nil {
		sender = eventhandlers.LogSender{Logger: logger}
	}
	handler := eventhandlers.NewOrderNotificationHandler(sender, logger)

	for _, eventType := range []events.EventType{
		contracts.OrderPlacedEventType,
		contracts.OrderCancelledEventType,
		contracts.OrderRefundedEventType,
	} {
		if err := cfg.EventSubscriber.Subscribe(eventType, handler); err != nil {
			logger.Error("failed to subscribe to order event", slog.String("event_type", eventType.String()), slog.Any("error", err))
		}
	}

	return &Module{}
}
