// Package application implements cart use cases.
package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/unitygrave/cardshop/modules/cart/domain"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Product is what the cart needs to know about a catalog product.
type Product struct {
	ID   types.ProductID
	Name string
	SKU  string
}

// Catalog is the cart's view of the catalog module.
type Catalog interface {
	// FindProducts returns the products that exist; missing IDs are omitted.
	FindProducts(ctx context.Context, ids []types.ProductID) (map[types.ProductID]Product, error)
	ResolvePrice(ctx context.Context, productID types.ProductID, currencyCode string) (types.Money, error)
}

// Item is a cart line with its product resolved.
type Item struct {
	Product  Product
	Quantity int
	AddedAt  time.Time
}

// PricedItem is an item priced in a display currency.
type PricedItem struct {
	Item
	UnitPrice types.Money
	LineTotal types.Money
}

// Service routes each caller to a store: identified shoppers use the
// persisted ledger, anonymous ones the session store.
type Service struct {
	persisted domain.Store
	sessions  domain.Store
	catalog   Catalog
	txScope   transaction.Scope
	readScope transaction.Scope
	now       func() time.Time

	// sessionMu serializes session cart writes, which the scope may not cover.
	sessionMu sync.Mutex
}

type Option func(*Service)

// WithReadScope prices a cart from one read snapshot.
func WithReadScope(scope transaction.Scope) Option {
	return func(s *Service) { s.readScope = scope }
}

// WithClock sets the clock used to stamp new lines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(persisted, sessions domain.Store, catalog Catalog, txScope transaction.Scope, opts ...Option) *Service {
	s := &Service{
		persisted: persisted,
		sessions:  sessions,
		catalog:   catalog,
		txScope:   txScope,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) storeFor(id types.Identity) domain.Store {
	if id.IsAnonymous() {
		return s.sessions
	}
	return s.persisted
}

// mutate runs a read-modify-write of one cart as a single unit of work.
func (s *Service) mutate(ctx context.Context, id types.Identity, fn func(ctx context.Context, store domain.Store) error) error {
	if id.IsAnonymous() {
		s.sessionMu.Lock()
		defer s.sessionMu.Unlock()
	}
	store := s.storeFor(id)
	return s.txScope.Execute(ctx, func(ctx context.Context) error {
		return fn(ctx, store)
	})
}

// Add puts qty more of a product in the cart, creating the line if needed.
func (s *Service) Add(ctx context.Context, id types.Identity, productID types.ProductID, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return err
	}

	return s.mutate(ctx, id, func(ctx context.Context, store domain.Store) error {
		lines, err := store.Lines(ctx, id.Key())
		if err != nil {
			return err
		}
		line, ok := domain.Find(lines, productID)
		if ok {
			line.Quantity += qty
		} else {
			line = domain.Line{ProductID: productID, Quantity: qty, AddedAt: s.now().UTC()}
		}
		return store.Put(ctx, id.Key(), line)
	})
}

// SetQuantity overwrites a line's quantity; zero or less removes it.
func (s *Service) SetQuantity(ctx context.Context, id types.Identity, productID types.ProductID, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, id, productID)
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return err
	}

	return s.mutate(ctx, id, func(ctx context.Context, store domain.Store) error {
		lines, err := store.Lines(ctx, id.Key())
		if err != nil {
			return err
		}
		line, ok := domain.Find(lines, productID)
		if !ok {
			line = domain.Line{ProductID: productID, AddedAt: s.now().UTC()}
		}
		line.Quantity = qty
		return store.Put(ctx, id.Key(), line)
	})
}

// Remove drops a line. Removing an absent line is not an error.
func (s *Service) Remove(ctx context.Context, id types.Identity, productID types.ProductID) error {
	return s.mutate(ctx, id, func(ctx context.Context, store domain.Store) error {
		return store.Delete(ctx, id.Key(), productID)
	})
}

// Items returns the cart ordered by the time each line was added. Lines
// whose product no longer exists are left out.
func (s *Service) Items(ctx context.Context, id types.Identity) ([]Item, error) {
	lines, err := s.storeFor(id).Lines(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]types.ProductID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.catalog.FindProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		items = append(items, Item{Product: p, Quantity: l.Quantity, AddedAt: l.AddedAt})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.Before(items[j].AddedAt)
		}
		return items[i].Product.ID.String() < items[j].Product.ID.String()
	})
	return items, nil
}

// ItemCount is the sum of quantities over resolvable lines.
func (s *Service) ItemCount(ctx context.Context, id types.Identity) (int, error) {
	items, err := s.Items(ctx, id)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n, nil
}

// Priced resolves every item's price in currencyCode.
func (s *Service) Priced(ctx context.Context, id types.Identity, currencyCode string) ([]PricedItem, types.Money, error) {
	if s.readScope == nil {
		return s.priced(ctx, id, currencyCode)
	}
	var (
		items []PricedItem
		total types.Money
	)
	err := s.readScope.Execute(ctx, func(ctx context.Context) error {
		var err error
		items, total, err = s.priced(ctx, id, currencyCode)
		return err
	})
	if err != nil {
		return nil, types.Money{}, err
	}
	return items, total, nil
}

func (s *Service) priced(ctx context.Context, id types.Identity, currencyCode string) ([]PricedItem, types.Money, error) {
	items, err := s.Items(ctx, id)
	if err != nil {
		return nil, types.Money{}, err
	}

	priced := make([]PricedItem, 0, len(items))
	var lineTotals []types.Money
	for _, it := range items {
		unit, err := s.catalog.ResolvePrice(ctx, it.Product.ID, currencyCode)
		if err != nil {
			return nil, types.Money{}, err
		}
		line := unit.Multiply(int64(it.Quantity))
		priced = append(priced, PricedItem{Item: it, UnitPrice: unit, LineTotal: line})
		lineTotals = append(lineTotals, line)
	}

	code, err := normalizeCode(currencyCode)
	if err != nil {
		return nil, types.Money{}, err
	}
	total, err := types.Sum(code, lineTotals...)
	if err != nil {
		return nil, types.Money{}, err
	}
	return priced, total, nil
}

// Total is the sum of resolved unit price times quantity.
func (s *Service) Total(ctx context.Context, id types.Identity, currencyCode string) (types.Money, error) {
	_, total, err := s.Priced(ctx, id, currencyCode)
	return total, err
}

// Clear empties the caller's cart.
func (s *Service) Clear(ctx context.Context, id types.Identity) error {
	return s.storeFor(id).Clear(ctx, id.Key())
}

// Migrate moves an anonymous session's lines into the user's persisted
// cart, summing quantities, then empties the session cart.
func (s *Service) Migrate(ctx context.Context, sessionID string, userID types.UserID) error {
	anon := types.Identity{SessionID: sessionID}
	user := types.Identity{UserID: userID}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	return s.txScope.Execute(ctx, func(ctx context.Context) error {
		lines, err := s.sessions.Lines(ctx, anon.Key())
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		ids := make([]types.ProductID, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}

		products, err := s.catalog.FindProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("loading products: %w", err)
		}
		existing, err := s.persisted.Lines(ctx, user.Key())
		if err != nil {
			return err
		}
		for _, l := range lines {
			if _, ok := products[l.ProductID]; !ok {
				continue
			}
			merged := l
			if cur, ok := domain.Find(existing, l.ProductID); ok {
				merged = cur
				merged.Quantity += l.Quantity
			}
			if err := s.persisted.Put(ctx, user.Key(), merged); err != nil {
				return err
			}
		}
		return s.sessions.Clear(ctx, anon.Key())
	})
}

func (s *Service) requireProduct(ctx context.Context, productID types.ProductID) error {
	found, err := s.catalog.FindProducts(ctx, []types.ProductID{productID})
	if err != nil {
		return fmt.Errorf("loading product: %w", err)
	}
	if _, ok := found[productID]; !ok {
		return domain.ErrProductNotFound
	}
	return nil
}

func normalizeCode(code string) (string, error) {
	m, err := types.NewMoney(0, code)
	if err != nil {
		return "", err
	}
	return m.Currency(), nil
}
