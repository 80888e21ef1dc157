package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/unitygrave/cardshop/modules/cart/domain"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// InMemoryStore is the persisted cart ledger for the in-memory backing.
type InMemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]domain.Line
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{carts: make(map[string][]domain.Line)}
}

func (s *InMemoryStore) Lines(ctx context.Context, cartKey string) ([]domain.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.carts[cartKey]), nil
}

func (s *InMemoryStore) Put(ctx context.Context, cartKey string, line domain.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal(ctx, cartKey)
	lines := slices.Clone(s.carts[cartKey])
	if i := slices.IndexFunc(lines, func(l domain.Line) bool { return l.ProductID == line.ProductID }); i >= 0 {
		lines[i] = line
	} else {
		lines = append(lines, line)
	}
	s.carts[cartKey] = lines
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, cartKey string, productID types.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal(ctx, cartKey)
	kept := slices.DeleteFunc(slices.Clone(s.carts[cartKey]), func(l domain.Line) bool { return l.ProductID == productID })
	if len(kept) == 0 {
		delete(s.carts, cartKey)
		return nil
	}
	s.carts[cartKey] = kept
	return nil
}

func (s *InMemoryStore) Clear(ctx context.Context, cartKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal(ctx, cartKey)
	delete(s.carts, cartKey)
	return nil
}

// journal must be called with mu held.
func (s *InMemoryStore) journal(ctx context.Context, cartKey string) {
	prev, existed := s.carts[cartKey]
	prev = slices.Clone(prev)
	transaction.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.carts[cartKey] = prev
		} else {
			delete(s.carts, cartKey)
		}
	})
}

var _ domain.Store = (*InMemoryStore)(nil)
