// Package commands contains write use cases for the catalog module.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// OverrideInvalidator drops cached override lookups.
type OverrideInvalidator interface {
	InvalidateOverride(productID types.ProductID, currencyCode string)
}

// UpsertPriceOverrideCommand creates or replaces the override for a
// (product, currency) pair.
type UpsertPriceOverrideCommand struct {
	ProductID      string
	CurrencyCode   string
	Price          int64
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
	Note           string
	Actor          string
}

type UpsertPriceOverrideHandler struct {
	products    domain.ProductRepository
	overrides   domain.PriceOverrideRepository
	currencies  domain.CurrencyRepository
	txScope     transaction.Scope
	publisher   events.Publisher
	invalidator OverrideInvalidator
}

func NewUpsertPriceOverrideHandler(
	products domain.ProductRepository,
	overrides domain.PriceOverrideRepository,
	currencies domain.CurrencyRepository,
	txScope transaction.Scope,
	publisher events.Publisher,
	invalidator OverrideInvalidator,
) *UpsertPriceOverrideHandler {
	return &UpsertPriceOverrideHandler{
		products:    products,
		overrides:   overrides,
		currencies:  currencies,
		txScope:     txScope,
		publisher:   publisher,
		invalidator: invalidator,
	}
}

func (h *UpsertPriceOverrideHandler) Handle(ctx context.Context, cmd UpsertPriceOverrideCommand) error {
	productID, err := types.ParseProductID(cmd.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}
	override, err := domain.NewPriceOverride(productID, cmd.CurrencyCode, cmd.Price, cmd.EffectiveFrom, cmd.EffectiveUntil, cmd.Note)
	if err != nil {
		return err
	}

	return h.txScope.Execute(ctx, func(ctx context.Context) error {
		if _, err := h.products.FindByID(ctx, productID); err != nil {
			return err
		}
		if _, err := h.currencies.FindByCode(ctx, override.CurrencyCode); err != nil {
			return err
		}
		invalidateOverrideCache(ctx, h.invalidator, productID, override.CurrencyCode)
		if err := h.overrides.Save(ctx, override); err != nil {
			return fmt.Errorf("saving override: %w", err)
		}
		return h.publisher.Publish(ctx, override.ChangedEvent(cmd.Actor))
	})
}

// DeactivatePriceOverrideCommand switches an override off without deleting it.
type DeactivatePriceOverrideCommand struct {
	ProductID    string
	CurrencyCode string
	Actor        string
}

type DeactivatePriceOverrideHandler struct {
	overrides   domain.PriceOverrideRepository
	txScope     transaction.Scope
	publisher   events.Publisher
	invalidator OverrideInvalidator
}

func NewDeactivatePriceOverrideHandler(
	overrides domain.PriceOverrideRepository,
	txScope transaction.Scope,
	publisher events.Publisher,
	invalidator OverrideInvalidator,
) *DeactivatePriceOverrideHandler {
	return &DeactivatePriceOverrideHandler{
		overrides:   overrides,
		txScope:     txScope,
		publisher:   publisher,
		invalidator: invalidator,
	}
}

func (h *DeactivatePriceOverrideHandler) Handle(ctx context.Context, cmd DeactivatePriceOverrideCommand) error {
	productID, err := types.ParseProductID(cmd.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	return h.txScope.Execute(ctx, func(ctx context.Context) error {
		override, err := h.overrides.Find(ctx, productID, cmd.CurrencyCode)
		if err != nil {
			return err
		}
		if !override.IsActive {
			return nil
		}
		override.IsActive = false
		override.UpdatedAt = time.Now().UTC()
		invalidateOverrideCache(ctx, h.invalidator, productID, override.CurrencyCode)
		if err := h.overrides.Save(ctx, override); err != nil {
			return fmt.Errorf("saving override: %w", err)
		}
		return h.publisher.Publish(ctx, override.ChangedEvent(cmd.Actor))
	})
}

// invalidateOverrideCache drops the cached lookup now and again when the unit
// ends. Call it before the write: rollback hooks unwind in reverse, so the
// rollback invalidation runs after the store is restored.
func invalidateOverrideCache(ctx context.Context, inv OverrideInvalidator, productID types.ProductID, code string) {
	if inv == nil {
		return
	}
	inv.InvalidateOverride(productID, code)
	transaction.OnRollback(ctx, func() {
		inv.InvalidateOverride(productID, code)
	})
	transaction.AfterCommit(ctx, func(context.Context) {
		inv.InvalidateOverride(productID, code)
	})
}
