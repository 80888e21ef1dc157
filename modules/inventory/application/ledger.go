// Package application implements the inventory ledger: the only code
// allowed to change stock levels.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/unitygrave/cardshop/modules/inventory/domain"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Movement is one requested stock change.
type Movement struct {
	ProductID types.ProductID
	Quantity  int
	Reason    domain.Reason
	Actor     string
	Reference string
}

// Ledger mutates stock and reports every change. It does not open
// transactions; callers run it inside their unit of work so the stock change
// commits or rolls back with the rest.
type Ledger struct {
	repo      domain.Repository
	publisher events.Publisher
	threshold int
	now       func() time.Time
}

func NewLedger(repo domain.Repository, publisher events.Publisher, lowStockThreshold int) *Ledger {
	return &Ledger{repo: repo, publisher: publisher, threshold: lowStockThreshold, now: time.Now}
}

// Levels returns the current quantity of every requested product; missing
// rows read as zero.
func (l *Ledger) Levels(ctx context.Context, productIDs []types.ProductID) (map[types.ProductID]int, error) {
	rows, err := l.repo.GetMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("reading stock: %w", err)
	}
	levels := make(map[types.ProductID]int, len(productIDs))
	for _, id := range productIDs {
		levels[id] = rows[id].Quantity
	}
	return levels, nil
}

// Decrement removes stock, failing with *types.InsufficientStockError when
// there is not enough.
func (l *Ledger) Decrement(ctx context.Context, m Movement) error {
	if m.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	stock, err := l.repo.Get(ctx, m.ProductID)
	if err != nil {
		return fmt.Errorf("reading stock: %w", err)
	}
	if stock.Quantity < m.Quantity {
		return &types.InsufficientStockError{ProductID: m.ProductID, Requested: m.Quantity, Available: stock.Quantity}
	}
	return l.apply(ctx, stock, stock.Quantity-m.Quantity, m)
}

// Restore puts stock back after a cancellation or refund.
func (l *Ledger) Restore(ctx context.Context, m Movement) error {
	if m.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	stock, err := l.repo.Get(ctx, m.ProductID)
	if err != nil {
		return fmt.Errorf("reading stock: %w", err)
	}
	return l.apply(ctx, stock, stock.Quantity+m.Quantity, m)
}

// Set overwrites the level, as a stock count or restock does.
func (l *Ledger) Set(ctx context.Context, productID types.ProductID, quantity int, actor string) error {
	if quantity < 0 {
		return domain.ErrNegativeStock
	}
	stock, err := l.repo.Get(ctx, productID)
	if err != nil {
		return fmt.Errorf("reading stock: %w", err)
	}
	if stock.Quantity == quantity {
		return nil
	}
	return l.apply(ctx, stock, quantity, Movement{ProductID: productID, Reason: domain.ReasonAdjustment, Actor: actor})
}

func (l *Ledger) apply(ctx context.Context, stock domain.Stock, newQty int, m Movement) error {
	oldQty := stock.Quantity
	stock.Quantity = newQty
	stock.UpdatedAt = l.now().UTC()
	if err := l.repo.Save(ctx, stock); err != nil {
		return fmt.Errorf("saving stock: %w", err)
	}

	productID := m.ProductID.String()
	evts := []events.Event{contracts.StockChangedEvent{
		BaseEvent:   events.NewBaseEvent(contracts.StockChangedEventType, productID),
		ProductID:   productID,
		OldQuantity: oldQty,
		NewQuantity: newQty,
		Delta:       newQty - oldQty,
		Reason:      string(m.Reason),
		Actor:       m.Actor,
		Reference:   m.Reference,
	}}
	if l.crossedLow(oldQty, newQty) {
		evts = append(evts, contracts.LowStockEvent{
			BaseEvent:  events.NewBaseEvent(contracts.LowStockEventType, productID),
			ProductID:  productID,
			Quantity:   newQty,
			Threshold:  l.threshold,
			OutOfStock: newQty == 0,
		})
	}
	return l.publisher.Publish(ctx, evts...)
}

// crossedLow fires once per downward crossing: when the level moves from
// above the threshold to at or below it, or from positive to zero.
func (l *Ledger) crossedLow(oldQty, newQty int) bool {
	if newQty >= oldQty {
		return false
	}
	if oldQty > l.threshold && newQty <= l.threshold {
		return true
	}
	return newQty == 0
}
