// Package persistence implements repository interfaces for orders.
package persistence

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/unitygrave/cardshop/modules/orders/domain"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// InMemoryRepository implements OrderRepository using in-memory storage.
// Orders are cloned on the way in and out so callers never share state with
// the store, and writes are undone if the surrounding unit of work rolls back.
type InMemoryRepository struct {
	mu       sync.RWMutex
	orders   map[types.OrderID]*domain.Order
	byNumber map[string]types.OrderID
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		orders:   make(map[types.OrderID]*domain.Order),
		byNumber: make(map[string]types.OrderID),
	}
}

func (r *InMemoryRepository) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := order.ID()
	if holder, taken := r.byNumber[order.Number()]; taken && holder != id {
		return fmt.Errorf("order number %s: %w", order.Number(), transaction.ErrDuplicateKey)
	}
	prev, existed := r.orders[id]
	r.orders[id] = order.Clone()
	r.byNumber[order.Number()] = id
	transaction.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.orders[id] = prev
			return
		}
		delete(r.orders, id)
		delete(r.byNumber, order.Number())
	})
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id types.OrderID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[id]
	if !exists {
		return nil, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *InMemoryRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byNumber[number]
	if !exists {
		return nil, domain.ErrOrderNotFound
	}
	return r.orders[id].Clone(), nil
}

func (r *InMemoryRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.byNumber[number]
	return exists, nil
}

// FindByUserID returns a page of the user's orders, newest first.
func (r *InMemoryRepository) FindByUserID(ctx context.Context, userID types.UserID, offset, limit int) ([]*domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var userOrders []*domain.Order
	for _, order := range r.orders {
		if order.UserID() == userID {
			userOrders = append(userOrders, order)
		}
	}
	slices.SortFunc(userOrders, func(a, b *domain.Order) int {
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(b.Number(), a.Number())
	})

	total := len(userOrders)
	if offset >= total {
		return []*domain.Order{}, total, nil
	}
	end := min(offset+limit, total)

	page := make([]*domain.Order, 0, end-offset)
	for _, o := range userOrders[offset:end] {
		page = append(page, o.Clone())
	}
	return page, total, nil
}

var _ domain.OrderRepository = (*InMemoryRepository)(nil)
