// Package persistence implements the audit store.
package persistence

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/unitygrave/cardshop/modules/audit/domain"
)

// InMemoryStore keeps audit records in process. Used when no audit database
// is configured and in tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	seen      map[string]struct{}
	movements []domain.StockMovement
	alerts    []domain.StockAlert
	prices    []domain.PriceChange
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{seen: make(map[string]struct{})}
}

// claim reports whether eventID is new. Callers hold mu.
func (s *InMemoryStore) claim(eventID string) bool {
	if _, dup := s.seen[eventID]; dup {
		return false
	}
	s.seen[eventID] = struct{}{}
	return true
}

func (s *InMemoryStore) RecordMovement(ctx context.Context, m domain.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claim(m.EventID) {
		s.movements = append(s.movements, m)
	}
	return nil
}

func (s *InMemoryStore) RecordAlert(ctx context.Context, a domain.StockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claim(a.EventID) {
		s.alerts = append(s.alerts, a)
	}
	return nil
}

func (s *InMemoryStore) RecordPriceChange(ctx context.Context, c domain.PriceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claim(c.EventID) {
		s.prices = append(s.prices, c)
	}
	return nil
}

func (s *InMemoryStore) Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.movements, productID, limit, func(m domain.StockMovement) (string, time.Time) {
		return m.ProductID, m.OccurredAt
	}), nil
}

func (s *InMemoryStore) Alerts(ctx context.Context, productID string, limit int) ([]domain.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.alerts, productID, limit, func(a domain.StockAlert) (string, time.Time) {
		return a.ProductID, a.OccurredAt
	}), nil
}

func (s *InMemoryStore) PriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.prices, productID, limit, func(c domain.PriceChange) (string, time.Time) {
		return c.ProductID, c.OccurredAt
	}), nil
}

// newestFirst filters records by product and returns at most limit of them,
// latest first. Records are appended in commit order, so equal timestamps
// keep that order reversed.
func newestFirst[T any](records []T, productID string, limit int, key func(T) (string, time.Time)) []T {
	var out []T
	for i := len(records) - 1; i >= 0; i-- {
		if id, _ := key(records[i]); id == productID {
			out = append(out, records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		_, ta := key(a)
		_, tb := key(b)
		return tb.Compare(ta)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var _ domain.Store = (*InMemoryStore)(nil)
