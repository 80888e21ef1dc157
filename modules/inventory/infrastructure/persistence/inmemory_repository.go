// Package persistence implements the stock repository.
package persistence

import (
	"context"
	"sync"

	"github.com/unitygrave/cardshop/modules/inventory/domain"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// InMemoryRepository stores stock rows in a map. Writes inside a unit of work
// are undone on rollback; the memory transaction scope provides isolation.
type InMemoryRepository struct {
	mu    sync.RWMutex
	stock map[types.ProductID]domain.Stock
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{stock: make(map[types.ProductID]domain.Stock)}
}

func (r *InMemoryRepository) Get(ctx context.Context, productID types.ProductID) (domain.Stock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stock[productID]
	if !ok {
		return domain.Stock{ProductID: productID}, nil
	}
	return s, nil
}

func (r *InMemoryRepository) GetMany(ctx context.Context, productIDs []types.ProductID) (map[types.ProductID]domain.Stock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make(map[types.ProductID]domain.Stock, len(productIDs))
	for _, id := range productIDs {
		if s, ok := r.stock[id]; ok {
			found[id] = s
		}
	}
	return found, nil
}

func (r *InMemoryRepository) Save(ctx context.Context, stock domain.Stock) error {
	if stock.Quantity < 0 {
		return domain.ErrNegativeStock
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := stock.ProductID
	prev, existed := r.stock[id]
	r.stock[id] = stock
	transaction.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.stock[id] = prev
		} else {
			delete(r.stock, id)
		}
	})
	return nil
}

var _ domain.Repository = (*InMemoryRepository)(nil)
