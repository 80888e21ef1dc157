package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unitygrave/cardshop/modules/orders/domain"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// CancelOrderCommand cancels a pending or processing order.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	Actor   string
}

// RefundOrderCommand refunds part or all of an order, in base-currency
// minor units.
type RefundOrderCommand struct {
	OrderID string
	Amount  int64
	Reason  string
	Actor   string
}

// UpdateStatusCommand moves an order between fulfilment statuses.
type UpdateStatusCommand struct {
	OrderID string
	Status  string
	Actor   string
}

// LifecycleHandler runs cancel, refund and status updates. Each one locks
// the order and the stock it touches for the length of its transaction.
type LifecycleHandler struct {
	repo      domain.OrderRepository
	inventory Inventory
	txScope   transaction.Scope
	publisher events.Publisher
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
}

func NewLifecycleHandler(
	repo domain.OrderRepository,
	inventory Inventory,
	txScope transaction.Scope,
	publisher events.Publisher,
	observer Observer,
	logger *slog.Logger,
) *LifecycleHandler {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleHandler{
		repo:      repo,
		inventory: inventory,
		txScope:   txScope,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
	}
}

// Cancel cancels the order and returns every item to stock.
func (h *LifecycleHandler) Cancel(ctx context.Context, cmd CancelOrderCommand) (*domain.Order, error) {
	return h.run(ctx, "cancel", cmd.OrderID, func(ctx context.Context, order *domain.Order) error {
		if err := order.Cancel(cmd.Reason, cmd.Actor, h.now()); err != nil {
			return err
		}
		return h.restock(ctx, order, StockOrderCancelled, cmd.Actor)
	})
}

// Refund records a refund. Stock comes back only when the refund completes
// the order total.
func (h *LifecycleHandler) Refund(ctx context.Context, cmd RefundOrderCommand) (*domain.Order, error) {
	return h.run(ctx, "refund", cmd.OrderID, func(ctx context.Context, order *domain.Order) error {
		amount, err := types.NewMoney(cmd.Amount, order.BaseTotals().Total.Currency())
		if err != nil {
			return err
		}
		full, err := order.Refund(amount, cmd.Reason, cmd.Actor, h.now())
		if err != nil {
			return err
		}
		if !full {
			return nil
		}
		return h.restock(ctx, order, StockOrderRefunded, cmd.Actor)
	})
}

// UpdateStatus moves the order along the fulfilment path.
func (h *LifecycleHandler) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*domain.Order, error) {
	return h.run(ctx, "update_status", cmd.OrderID, func(_ context.Context, order *domain.Order) error {
		return order.UpdateStatus(domain.Status(cmd.Status), cmd.Actor, h.now())
	})
}

func (h *LifecycleHandler) run(ctx context.Context, op, rawID string, mutate func(context.Context, *domain.Order) error) (*domain.Order, error) {
	orderID, err := types.ParseOrderID(rawID)
	if err != nil {
		h.observer.ObserveLifecycle(op, "rejected")
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderNotFound, err)
	}

	order, err := transaction.ExecuteWithResult(ctx, h.txScope, func(ctx context.Context) (*domain.Order, error) {
		order, err := h.repo.FindByID(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("finding order: %w", err)
		}
		if err := mutate(ctx, order); err != nil {
			return nil, err
		}
		if err := h.repo.Save(ctx, order); err != nil {
			return nil, fmt.Errorf("saving order: %w", err)
		}
		if err := h.publisher.Publish(ctx, order.PopDomainEvents()...); err != nil {
			return nil, fmt.Errorf("publishing events: %w", err)
		}
		return order, nil
	})
	err = classify(err)
	h.observer.ObserveLifecycle(op, lifecycleOutcome(err))
	if err != nil {
		if lifecycleOutcome(err) == "failed" {
			h.logger.ErrorContext(ctx, "order "+op+" failed", slog.String("order_id", rawID), slog.Any("error", err))
		}
		return nil, err
	}
	h.logger.InfoContext(ctx, "order "+op,
		slog.String("order_number", order.Number()),
		slog.String("status", order.Status().String()),
	)
	return order, nil
}

func (h *LifecycleHandler) restock(ctx context.Context, order *domain.Order, reason StockReason, actor string) error {
	for _, it := range order.Items() {
		if err := h.inventory.Restore(ctx, it.ProductID, it.Quantity, reason, actor, order.Number()); err != nil {
			return fmt.Errorf("restoring stock: %w", err)
		}
	}
	return nil
}
