// Package persistence implements repository interfaces for the catalog.
package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// InMemoryProductRepository implements ProductRepository using in-memory
// storage. Writes made inside a unit of work are undone if it rolls back.
type InMemoryProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewInMemoryProductRepository() *InMemoryProductRepository {
	return &InMemoryProductRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *InMemoryProductRepository) Save(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := product.ID().String()
	for otherID, p := range r.products {
		if otherID != id && strings.EqualFold(p.SKU(), product.SKU()) {
			return domain.ErrDuplicateSKU
		}
	}

	prev, existed := r.products[id]
	r.products[id] = product.Clone()
	transaction.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.products[id] = prev
		} else {
			delete(r.products, id)
		}
	})
	return nil
}

func (r *InMemoryProductRepository) FindByID(ctx context.Context, id types.ProductID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id.String()]
	if !exists {
		return nil, domain.ErrProductNotFound
	}
	return product.Clone(), nil
}

func (r *InMemoryProductRepository) FindByIDs(ctx context.Context, ids []types.ProductID) (map[types.ProductID]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make(map[types.ProductID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id.String()]; ok {
			found[id] = p.Clone()
		}
	}
	return found, nil
}

func (r *InMemoryProductRepository) List(ctx context.Context, offset, limit int) ([]*domain.Product, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		all = append(all, p.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU() < all[j].SKU() })

	total := len(all)
	if offset >= total {
		return []*domain.Product{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// InMemoryPriceOverrideRepository implements PriceOverrideRepository.
type InMemoryPriceOverrideRepository struct {
	mu        sync.RWMutex
	overrides map[string]domain.PriceOverride
}

func NewInMemoryPriceOverrideRepository() *InMemoryPriceOverrideRepository {
	return &InMemoryPriceOverrideRepository{
		overrides: make(map[string]domain.PriceOverride),
	}
}

func overrideKey(productID types.ProductID, code string) string {
	return productID.String() + "|" + strings.ToUpper(code)
}

func (r *InMemoryPriceOverrideRepository) Save(ctx context.Context, override domain.PriceOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := overrideKey(override.ProductID, override.CurrencyCode)
	prev, existed := r.overrides[key]
	r.overrides[key] = override
	transaction.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.overrides[key] = prev
		} else {
			delete(r.overrides, key)
		}
	})
	return nil
}

func (r *InMemoryPriceOverrideRepository) Find(ctx context.Context, productID types.ProductID, currencyCode string) (domain.PriceOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.overrides[overrideKey(productID, currencyCode)]
	if !ok {
		return domain.PriceOverride{}, domain.ErrOverrideNotFound
	}
	return o, nil
}

func (r *InMemoryPriceOverrideRepository) ListByProduct(ctx context.Context, productID types.ProductID) ([]domain.PriceOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []domain.PriceOverride
	for _, o := range r.overrides {
		if o.ProductID == productID {
			list = append(list, o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CurrencyCode < list[j].CurrencyCode })
	return list, nil
}

// InMemoryCurrencyRepository implements CurrencyRepository.
type InMemoryCurrencyRepository struct {
	mu         sync.RWMutex
	currencies map[string]types.Currency
}

func NewInMemoryCurrencyRepository() *InMemoryCurrencyRepository {
	return &InMemoryCurrencyRepository{
		currencies: make(map[string]types.Currency),
	}
}

func (r *InMemoryCurrencyRepository) Save(ctx context.Context, currency types.Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := currency.Code
	prev, existed := r.currencies[code]
	r.currencies[code] = currency
	transaction.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.currencies[code] = prev
		} else {
			delete(r.currencies, code)
		}
	})
	return nil
}

func (r *InMemoryCurrencyRepository) FindByCode(ctx context.Context, code string) (types.Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code = strings.ToUpper(strings.TrimSpace(code))
	c, ok := r.currencies[code]
	if !ok {
		return types.Currency{}, &types.CurrencyNotFoundError{Code: code}
	}
	return c, nil
}

func (r *InMemoryCurrencyRepository) Base(ctx context.Context) (types.Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.currencies {
		if c.IsBase && c.IsActive {
			return c, nil
		}
	}
	return types.Currency{}, types.ErrNoActiveBaseCurrency
}

func (r *InMemoryCurrencyRepository) List(ctx context.Context) ([]types.Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]types.Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}

// Compile-time interface checks.
var (
	_ domain.ProductRepository       = (*InMemoryProductRepository)(nil)
	_ domain.PriceOverrideRepository = (*InMemoryPriceOverrideRepository)(nil)
	_ domain.CurrencyRepository      = (*InMemoryCurrencyRepository)(nil)
)
