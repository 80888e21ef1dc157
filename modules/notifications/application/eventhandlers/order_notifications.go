package eventhandlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
)

// Sender delivers a customer message. The default sender only logs.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.Logger.InfoContext(ctx, "sending email", slog.String("to", to), slog.String("subject", subject), slog.String("body", body))
	return nil
}

// OrderNotificationHandler tells the customer about placement, cancellation
// and refunds.
//
// It runs after the order transaction has committed and performs external
// side effects, so it must never run inside one. Redelivered events are
// recognised by event ID and sent once.
type OrderNotificationHandler struct {
	sender Sender
	logger *slog.Logger
	seen   *expirable.LRU[string, struct{}]
}

func NewOrderNotificationHandler(sender Sender, logger *slog.Logger) *OrderNotificationHandler {
	return &OrderNotificationHandler{
		sender: sender,
		logger: logger,
		seen:   expirable.NewLRU[string, struct{}](10_000, nil, 24*time.Hour),
	}
}

// Handle processes OrderPlaced, OrderCancelled and OrderRefunded events.
func (h *OrderNotificationHandler) Handle(ctx context.Context, event events.Event) error {
	if h.seen.Contains(event.EventID()) {
		h.logger.DebugContext(ctx, "duplicate notification skipped", slog.String("event_id", event.EventID()))
		return nil
	}

	var to, subject, body string
	switch e := event.(type) {
	case contracts.OrderPlacedEvent:
		to, subject = e.Email, "Order "+e.OrderNumber+" confirmed"
		body = fmt.Sprintf("%d item(s), total %s %s.", e.ItemCount, formatMinor(e.TotalDisplay), e.DisplayCurrency)
	case contracts.OrderCancelledEvent:
		to, subject = e.Email, "Order "+e.OrderNumber+" cancelled"
		body = e.Reason
	case contracts.OrderRefundedEvent:
		to, subject = e.Email, "Refund for order "+e.OrderNumber
		body = fmt.Sprintf("Refunded %s %s.", formatMinor(e.Amount), e.Currency)
	default:
		return fmt.Errorf("unexpected event %T", event)
	}

	if err := h.sender.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("sending %s notification: %w", event.EventType(), err)
	}
	h.seen.Add(event.EventID(), struct{}{})
	return nil
}

// formatMinor renders minor units with two decimals.
func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
