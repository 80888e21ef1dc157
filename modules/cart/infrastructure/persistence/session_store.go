// Package persistence implements cart stores.
package persistence

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/unitygrave/cardshop/modules/cart/domain"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// SessionStore keeps anonymous carts in process memory. Carts idle for
// longer than the TTL, or pushed out by newer sessions, are dropped.
type SessionStore struct {
	mu    sync.Mutex
	carts *expirable.LRU[string, []domain.Line]
}

func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	if size <= 0 {
		size = 10000
	}
	return &SessionStore{carts: expirable.NewLRU[string, []domain.Line](size, nil, ttl)}
}

func (s *SessionStore) Lines(ctx context.Context, cartKey string) ([]domain.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, _ := s.carts.Get(cartKey)
	return slices.Clone(lines), nil
}

func (s *SessionStore) Put(ctx context.Context, cartKey string, line domain.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal(ctx, cartKey)
	lines, _ := s.carts.Peek(cartKey)
	lines = slices.Clone(lines)
	if i := slices.IndexFunc(lines, func(l domain.Line) bool { return l.ProductID == line.ProductID }); i >= 0 {
		lines[i] = line
	} else {
		lines = append(lines, line)
	}
	s.carts.Add(cartKey, lines)
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, cartKey string, productID types.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, ok := s.carts.Peek(cartKey)
	if !ok {
		return nil
	}
	kept := slices.DeleteFunc(slices.Clone(lines), func(l domain.Line) bool { return l.ProductID == productID })
	if len(kept) == len(lines) {
		return nil
	}
	s.journal(ctx, cartKey)
	s.carts.Add(cartKey, kept)
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, cartKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal(ctx, cartKey)
	s.carts.Remove(cartKey)
	return nil
}

// journal registers restoration of the cart as it is now, should the
// surrounding unit of work roll back. Must be called with mu held.
func (s *SessionStore) journal(ctx context.Context, cartKey string) {
	lines, existed := s.carts.Peek(cartKey)
	lines = slices.Clone(lines)
	transaction.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.carts.Add(cartKey, lines)
		} else {
			s.carts.Remove(cartKey)
		}
	})
}

func (s *SessionStore) Len() int {
	return s.carts.Len()
}

var _ domain.Store = (*SessionStore)(nil)
