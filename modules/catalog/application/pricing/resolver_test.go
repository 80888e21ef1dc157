package pricing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitygrave/cardshop/modules/catalog/application/pricing"
	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/catalog/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

type fixture struct {
	products   *persistence.InMemoryProductRepository
	overrides  *persistence.InMemoryPriceOverrideRepository
	currencies *persistence.InMemoryCurrencyRepository
	product    *domain.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		products:   persistence.NewInMemoryProductRepository(),
		overrides:  persistence.NewInMemoryPriceOverrideRepository(),
		currencies: persistence.NewInMemoryCurrencyRepository(),
	}

	usd, err := types.NewBaseCurrency("USD", "US Dollar", "$")
	require.NoError(t, err)
	eur, err := types.NewCurrency("EUR", "Euro", "€", decimal.RequireFromString("0.90"))
	require.NoError(t, err)
	jpy, err := types.NewCurrency("JPY", "Yen", "¥", decimal.NewFromInt(150))
	require.NoError(t, err)
	gbp, err := types.NewCurrency("GBP", "Pound", "£", decimal.RequireFromString("0.80"))
	require.NoError(t, err)
	gbp.IsActive = false
	for _, c := range []types.Currency{usd, eur, jpy, gbp} {
		require.NoError(t, f.currencies.Save(ctx, c))
	}

	f.product, err = domain.NewProduct("Charizard", "BS-4", types.MustNewMoney(1000, "USD"), domain.ConditionLightlyPlayed)
	require.NoError(t, err)
	require.NoError(t, f.products.Save(ctx, f.product))
	return f
}

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) ObservePriceLookup(hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestResolvePrice_BaseCurrencyReturnsStoredPrice(t *testing.T) {
	f := newFixture(t)
	r := pricing.NewResolver(f.products, f.overrides, f.currencies)

	price, err := r.ResolvePrice(context.Background(), f.product, "USD")
	require.NoError(t, err)
	assert.Equal(t, types.MustNewMoney(1000, "USD"), price)
}

func TestResolvePrice_ConvertsThroughRate(t *testing.T) {
	f := newFixture(t)
	r := pricing.NewResolver(f.products, f.overrides, f.currencies)
	ctx := context.Background()

	eur, err := r.ResolvePrice(ctx, f.product, "eur")
	require.NoError(t, err)
	assert.Equal(t, int64(900), eur.Amount())
	assert.Equal(t, "EUR", eur.Currency())

	jpy, err := r.ResolvePrice(ctx, f.product, "JPY")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), jpy.Amount(), "10.00 USD at 150 is 1500 yen")
}

func TestResolvePrice_EffectiveOverrideWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := domain.NewPriceOverride(f.product.ID(), "EUR", 850, nil, nil, "")
	require.NoError(t, err)
	require.NoError(t, f.overrides.Save(ctx, o))

	r := pricing.NewResolver(f.products, f.overrides, f.currencies)
	price, err := r.ResolvePrice(ctx, f.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(850), price.Amount())
}

func TestResolvePrice_WindowEvaluatedAtReadTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)
	o, err := domain.NewPriceOverride(f.product.ID(), "EUR", 700, &start, nil, "")
	require.NoError(t, err)
	require.NoError(t, f.overrides.Save(ctx, o))

	clock := now
	r := pricing.NewResolver(f.products, f.overrides, f.currencies, pricing.WithClock(func() time.Time { return clock }))

	price, err := r.ResolvePrice(ctx, f.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), price.Amount())

	clock = start
	price, err = r.ResolvePrice(ctx, f.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(700), price.Amount(), "cached override starts applying without invalidation")
}

func TestResolvePrice_CachesOverrideLookupUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obs := &countingObserver{}
	r := pricing.NewResolver(f.products, f.overrides, f.currencies, pricing.WithObserver(obs), pricing.WithCache(16, time.Minute))

	price, err := r.ResolvePrice(ctx, f.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), price.Amount())

	o, err := domain.NewPriceOverride(f.product.ID(), "EUR", 850, nil, nil, "")
	require.NoError(t, err)
	require.NoError(t, f.overrides.Save(ctx, o))

	price, err = r.ResolvePrice(ctx, f.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), price.Amount(), "stale until invalidated")

	r.InvalidateOverride(f.product.ID(), "EUR")
	price, err = r.ResolvePrice(ctx, f.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(850), price.Amount())

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
}

func TestResolvePrice_UnknownOrInactiveCurrency(t *testing.T) {
	f := newFixture(t)
	r := pricing.NewResolver(f.products, f.overrides, f.currencies)
	ctx := context.Background()

	_, err := r.ResolvePrice(ctx, f.product, "CHF")
	assert.ErrorIs(t, err, types.ErrCurrencyNotFound)

	_, err = r.ResolvePrice(ctx, f.product, "GBP")
	var notFound *types.CurrencyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "GBP", notFound.Code)
}

func TestConvertToBase(t *testing.T) {
	f := newFixture(t)
	r := pricing.NewResolver(f.products, f.overrides, f.currencies)
	ctx := context.Background()

	usd, err := r.ConvertToBase(ctx, types.MustNewMoney(900, "EUR"))
	require.NoError(t, err)
	assert.Equal(t, types.MustNewMoney(1000, "USD"), usd)

	same, err := r.ConvertToBase(ctx, types.MustNewMoney(42, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), same.Amount())
}

func TestQuote_FlagsOutdatedRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eur, err := f.currencies.FindByCode(ctx, "EUR")
	require.NoError(t, err)
	eur.RateUpdatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.currencies.Save(ctx, eur))

	r := pricing.NewResolver(f.products, f.overrides, f.currencies, pricing.WithMaxRateAge(24*time.Hour))

	q, err := r.Quote(ctx, f.product.ID(), "EUR")
	require.NoError(t, err)
	assert.True(t, q.RateOutdated)
	assert.Equal(t, "€9.00", q.Formatted)

	q, err = r.Quote(ctx, f.product.ID(), "USD")
	require.NoError(t, err)
	assert.False(t, q.RateOutdated)

	outdated, err := r.OutdatedCurrencies(ctx)
	require.NoError(t, err)
	require.Len(t, outdated, 1)
	assert.Equal(t, "EUR", outdated[0].Code)
}
