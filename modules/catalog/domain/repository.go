package domain

import (
	"context"

	"github.com/unitygrave/cardshop/modules/shared/types"
)

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	Save(ctx context.Context, product *Product) error
	FindByID(ctx context.Context, id types.ProductID) (*Product, error)
	// FindByIDs returns the products that exist; missing IDs are skipped.
	FindByIDs(ctx context.Context, ids []types.ProductID) (map[types.ProductID]*Product, error)
	List(ctx context.Context, offset, limit int) ([]*Product, int, error)
}

// PriceOverrideRepository stores at most one override per (product, currency).
type PriceOverrideRepository interface {
	Save(ctx context.Context, override PriceOverride) error
	Find(ctx context.Context, productID types.ProductID, currencyCode string) (PriceOverride, error)
	ListByProduct(ctx context.Context, productID types.ProductID) ([]PriceOverride, error)
}

// CurrencyRepository stores the supported currencies and their rates.
type CurrencyRepository interface {
	Save(ctx context.Context, currency types.Currency) error
	// FindByCode returns types.CurrencyNotFoundError when the code is unknown.
	FindByCode(ctx context.Context, code string) (types.Currency, error)
	// Base returns the active base currency or types.ErrNoActiveBaseCurrency.
	Base(ctx context.Context) (types.Currency, error)
	List(ctx context.Context) ([]types.Currency, error)
}
