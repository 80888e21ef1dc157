package app

import (
	"context"
	"fmt"

	"github.com/unitygrave/cardshop/modules/cart"
	cartapp "github.com/unitygrave/cardshop/modules/cart/application"
	"github.com/unitygrave/cardshop/modules/catalog"
	"github.com/unitygrave/cardshop/modules/inventory"
	ordercommands "github.com/unitygrave/cardshop/modules/orders/application/commands"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// cartCatalog lets the cart read products and prices from the catalog.
type cartCatalog struct {
	catalog catalog.Module
}

func (a cartCatalog) FindProducts(ctx context.Context, ids []types.ProductID) (map[types.ProductID]cartapp.Product, error) {
	found, err := a.catalog.FindProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[types.ProductID]cartapp.Product, len(found))
	for id, p := range found {
		out[id] = cartapp.Product{ID: p.ID, Name: p.Name, SKU: p.SKU}
	}
	return out, nil
}

func (a cartCatalog) ResolvePrice(ctx context.Context, productID types.ProductID, code string) (types.Money, error) {
	return a.catalog.ResolvePrice(ctx, productID, code)
}

// orderCart hands checkout the caller's cart.
type orderCart struct {
	cart cart.Module
}

func (a orderCart) Lines(ctx context.Context, id types.Identity) ([]ordercommands.CartLine, error) {
	lines, err := a.cart.Lines(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]ordercommands.CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, ordercommands.CartLine{ProductID: l.ProductID, Name: l.Name, SKU: l.SKU, Quantity: l.Quantity})
	}
	return out, nil
}

func (a orderCart) Clear(ctx context.Context, id types.Identity) error {
	return a.cart.Clear(ctx, id)
}

// orderInventory maps order stock reasons onto inventory movements.
type orderInventory struct {
	inventory inventory.Module
}

func (a orderInventory) Levels(ctx context.Context, ids []types.ProductID) (map[types.ProductID]int, error) {
	return a.inventory.Levels(ctx, ids)
}

func (a orderInventory) Decrement(ctx context.Context, id types.ProductID, qty int, reason ordercommands.StockReason, actor, ref string) error {
	r, err := stockReason(reason)
	if err != nil {
		return err
	}
	return a.inventory.Decrement(ctx, id, qty, r, actor, ref)
}

func (a orderInventory) Restore(ctx context.Context, id types.ProductID, qty int, reason ordercommands.StockReason, actor, ref string) error {
	r, err := stockReason(reason)
	if err != nil {
		return err
	}
	return a.inventory.Restore(ctx, id, qty, r, actor, ref)
}

func stockReason(r ordercommands.StockReason) (string, error) {
	switch r {
	case ordercommands.StockOrderPlaced:
		return inventory.ReasonOrderPlaced, nil
	case ordercommands.StockOrderCancelled:
		return inventory.ReasonOrderCancelled, nil
	case ordercommands.StockOrderRefunded:
		return inventory.ReasonOrderRefunded, nil
	default:
		return "", fmt.Errorf("unknown stock reason %q", r)
	}
}

var (
	_ cartapp.Catalog         = cartCatalog{}
	_ ordercommands.Cart      = orderCart{}
	_ ordercommands.Pricing   = catalog.Module(nil)
	_ ordercommands.Inventory = orderInventory{}
)
