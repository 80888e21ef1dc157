// Package pricing resolves what a product costs in a given currency.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unitygrave/cardshop/internal/platform/cache"
	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// DefaultOverrideTTL bounds how stale a cached override lookup may be.
const DefaultOverrideTTL = 5 * time.Minute

// LookupObserver records override cache hits and misses.
type LookupObserver interface {
	ObservePriceLookup(hit bool)
}

type overrideKey struct {
	productID string
	currency  string
}

func (k overrideKey) String() string { return k.productID + "|" + k.currency }

// overrideEntry is the cached result of one override lookup; found is false
// when the product has no override in that currency.
type overrideEntry struct {
	override domain.PriceOverride
	found    bool
}

// Resolver computes display prices from base prices, overrides and rates.
type Resolver struct {
	products   domain.ProductRepository
	overrides  domain.PriceOverrideRepository
	currencies domain.CurrencyRepository
	cache      *cache.ReadThrough[overrideKey, overrideEntry]
	observer   LookupObserver
	maxRateAge time.Duration
	now        func() time.Time
}

type Option func(*Resolver)

func WithObserver(o LookupObserver) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithClock replaces time.Now for override windows and rate age.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithMaxRateAge(d time.Duration) Option {
	return func(r *Resolver) { r.maxRateAge = d }
}

func WithCache(size int, ttl time.Duration) Option {
	return func(r *Resolver) { r.cache = cache.NewReadThrough[overrideKey, overrideEntry](size, ttl) }
}

func NewResolver(
	products domain.ProductRepository,
	overrides domain.PriceOverrideRepository,
	currencies domain.CurrencyRepository,
	opts ...Option,
) *Resolver {
	r := &Resolver{
		products:   products,
		overrides:  overrides,
		currencies: currencies,
		maxRateAge: 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.NewReadThrough[overrideKey, overrideEntry](1024, DefaultOverrideTTL)
	}
	return r
}

// ResolvePrice returns the product's price in currencyCode. An effective
// override always wins; otherwise the product's own price is used when the
// currencies match and a conversion through the base currency when not.
func (r *Resolver) ResolvePrice(ctx context.Context, product *domain.Product, currencyCode string) (types.Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))

	entry, err := r.lookupOverride(ctx, product.ID(), code)
	if err != nil {
		return types.Money{}, err
	}
	if entry.found && entry.override.EffectiveAt(r.now()) {
		return entry.override.Money(), nil
	}
	if product.BaseCurrencyCode() == code {
		return product.BasePrice(), nil
	}

	target, err := r.Currency(ctx, code)
	if err != nil {
		return types.Money{}, err
	}
	source, err := r.currencies.FindByCode(ctx, product.BaseCurrencyCode())
	if err != nil {
		return types.Money{}, fmt.Errorf("product %s: %w", product.ID(), err)
	}
	return types.Convert(product.BasePrice(), source, target)
}

// ResolvePriceByID loads the product and resolves its price.
func (r *Resolver) ResolvePriceByID(ctx context.Context, productID types.ProductID, currencyCode string) (types.Money, error) {
	product, err := r.products.FindByID(ctx, productID)
	if err != nil {
		return types.Money{}, err
	}
	return r.ResolvePrice(ctx, product, currencyCode)
}

func (r *Resolver) lookupOverride(ctx context.Context, productID types.ProductID, code string) (overrideEntry, error) {
	hit := true
	entry, err := r.cache.Get(ctx, overrideKey{productID: productID.String(), currency: code}, func(ctx context.Context) (overrideEntry, error) {
		hit = false
		o, err := r.overrides.Find(ctx, productID, code)
		if errors.Is(err, domain.ErrOverrideNotFound) {
			return overrideEntry{}, nil
		}
		if err != nil {
			return overrideEntry{}, fmt.Errorf("finding override: %w", err)
		}
		return overrideEntry{override: o, found: true}, nil
	})
	if r.observer != nil && err == nil {
		r.observer.ObservePriceLookup(hit)
	}
	return entry, err
}

// InvalidateOverride drops the cached override lookup for one pair.
func (r *Resolver) InvalidateOverride(productID types.ProductID, currencyCode string) {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	r.cache.Invalidate(overrideKey{productID: productID.String(), currency: code})
}

// Currency returns an active currency by code.
func (r *Resolver) Currency(ctx context.Context, code string) (types.Currency, error) {
	c, err := r.currencies.FindByCode(ctx, code)
	if err != nil {
		return types.Currency{}, err
	}
	if !c.IsActive {
		return types.Currency{}, &types.CurrencyNotFoundError{Code: c.Code}
	}
	return c, nil
}

func (r *Resolver) BaseCurrency(ctx context.Context) (types.Currency, error) {
	return r.currencies.Base(ctx)
}

// ConvertToBase re-expresses amount in the base currency. A currency without
// a usable rate converts to zero.
func (r *Resolver) ConvertToBase(ctx context.Context, amount types.Money) (types.Money, error) {
	base, err := r.currencies.Base(ctx)
	if err != nil {
		return types.Money{}, err
	}
	if amount.Currency() == base.Code {
		return amount, nil
	}
	c, err := r.currencies.FindByCode(ctx, amount.Currency())
	if err != nil {
		return types.Money{}, err
	}
	return types.ConvertToBase(amount, c, base), nil
}

// Quote is a resolved price ready for display.
type Quote struct {
	ProductID    string
	Price        types.Money
	Formatted    string
	RateOutdated bool
}

func (r *Resolver) Quote(ctx context.Context, productID types.ProductID, currencyCode string) (Quote, error) {
	product, err := r.products.FindByID(ctx, productID)
	if err != nil {
		return Quote{}, err
	}
	price, err := r.ResolvePrice(ctx, product, currencyCode)
	if err != nil {
		return Quote{}, err
	}
	c, err := r.Currency(ctx, currencyCode)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ProductID:    productID.String(),
		Price:        price,
		Formatted:    c.Format(price),
		RateOutdated: c.IsOutdated(r.now(), r.maxRateAge),
	}, nil
}

// OutdatedCurrencies lists active currencies whose rate is older than the
// configured maximum age.
func (r *Resolver) OutdatedCurrencies(ctx context.Context) ([]types.Currency, error) {
	all, err := r.currencies.List(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	var outdated []types.Currency
	for _, c := range all {
		if c.IsActive && c.IsOutdated(now, r.maxRateAge) {
			outdated = append(outdated, c)
		}
	}
	return outdated, nil
}

func (r *Resolver) MaxRateAge() time.Duration { return r.maxRateAge }
