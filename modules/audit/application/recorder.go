// Package application turns committed domain events into audit records.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unitygrave/cardshop/modules/audit/domain"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
)

// Recorder handles StockChanged, LowStock and PriceChanged. It runs after the
// producing transaction has committed, so an error here is reported to the
// bus and never undoes the change being audited.
type Recorder struct {
	store  domain.Store
	logger *slog.Logger
}

func NewRecorder(store domain.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Subscribe registers the recorder for every event it audits.
func (r *Recorder) Subscribe(sub events.Subscriber) error {
	subscriptions := map[events.EventType]events.HandlerFunc{
		contracts.StockChangedEventType: r.handleStockChanged,
		contracts.LowStockEventType:     r.handleLowStock,
		contracts.PriceChangedEventType: r.handlePriceChanged,
	}
	for eventType, handler := range subscriptions {
		if err := sub.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", eventType, err)
		}
	}
	return nil
}

func (r *Recorder) handleStockChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(contracts.StockChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}
	return r.store.RecordMovement(ctx, domain.StockMovement{
		EventID:     e.EventID(),
		ProductID:   e.ProductID,
		OldQuantity: e.OldQuantity,
		NewQuantity: e.NewQuantity,
		Delta:       e.Delta,
		Reason:      e.Reason,
		Actor:       e.Actor,
		Reference:   e.Reference,
		OccurredAt:  e.OccurredAt(),
	})
}

func (r *Recorder) handleLowStock(ctx context.Context, event events.Event) error {
	e, ok := event.(contracts.LowStockEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}
	r.logger.WarnContext(ctx, "low stock",
		slog.String("product_id", e.ProductID),
		slog.Int("quantity", e.Quantity),
		slog.Int("threshold", e.Threshold),
		slog.Bool("out_of_stock", e.OutOfStock),
	)
	return r.store.RecordAlert(ctx, domain.StockAlert{
		EventID:    e.EventID(),
		ProductID:  e.ProductID,
		Quantity:   e.Quantity,
		Threshold:  e.Threshold,
		OutOfStock: e.OutOfStock,
		OccurredAt: e.OccurredAt(),
	})
}

func (r *Recorder) handlePriceChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(contracts.PriceChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}
	return r.store.RecordPriceChange(ctx, domain.PriceChange{
		EventID:       e.EventID(),
		ProductID:     e.ProductID,
		Currency:      e.Currency,
		OldPrice:      e.OldPrice,
		NewPrice:      e.NewPrice,
		PercentChange: e.PercentChange,
		Actor:         e.Actor,
		OccurredAt:    e.OccurredAt(),
	})
}
