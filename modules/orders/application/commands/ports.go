package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unitygrave/cardshop/modules/orders/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// CartLine is a cart entry as the orders module sees it.
type CartLine struct {
	ProductID types.ProductID
	Name      string
	SKU       string
	Quantity  int
}

// Cart reads and empties the caller's cart. Both calls join the caller's
// transaction.
type Cart interface {
	Lines(ctx context.Context, id types.Identity) ([]CartLine, error)
	Clear(ctx context.Context, id types.Identity) error
}

// Pricing resolves prices and currencies.
type Pricing interface {
	ResolvePrice(ctx context.Context, productID types.ProductID, currencyCode string) (types.Money, error)
	Currency(ctx context.Context, code string) (types.Currency, error)
	BaseCurrency(ctx context.Context) (types.Currency, error)
}

// StockReason labels an inventory movement made on behalf of an order.
type StockReason string

const (
	StockOrderPlaced    StockReason = "order_placed"
	StockOrderCancelled StockReason = "order_cancelled"
	StockOrderRefunded  StockReason = "order_refunded"
)

// Inventory adjusts stock inside the caller's transaction.
type Inventory interface {
	Levels(ctx context.Context, productIDs []types.ProductID) (map[types.ProductID]int, error)
	Decrement(ctx context.Context, productID types.ProductID, quantity int, reason StockReason, actor, reference string) error
	Restore(ctx context.Context, productID types.ProductID, quantity int, reason StockReason, actor, reference string) error
}

// Observer receives outcome counts. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveCheckout(outcome string, elapsed time.Duration)
	ObserveLifecycle(operation, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveCheckout(string, time.Duration) {}
func (nopObserver) ObserveLifecycle(string, string)       {}

// classified errors pass through untouched; everything else is a
// persistence failure.
var classified = []error{
	domain.ErrOrderNotFound,
	domain.ErrEmptyCart,
	domain.ErrInvalidTransition,
	domain.ErrRefundExceedsTotal,
	domain.ErrOrderAlreadyRefunded,
	domain.ErrInvalidRefundAmount,
	domain.ErrInvalidPaymentMethod,
	domain.ErrInvalidContact,
	domain.ErrInvalidAddress,
	domain.ErrInvalidStatus,
	domain.ErrInvalidPricingInput,
	domain.ErrPersistenceFailure,
	types.ErrInsufficientStock,
	types.ErrCurrencyNotFound,
	types.ErrNoActiveBaseCurrency,
	types.ErrCurrencyMismatch,
}

func isClassified(err error) bool {
	for _, target := range classified {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classify(err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
}

func lifecycleOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "failed"
	default:
		return "rejected"
	}
}
