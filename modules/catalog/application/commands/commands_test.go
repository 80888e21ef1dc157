package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformtx "github.com/unitygrave/cardshop/internal/platform/transaction"
	"github.com/unitygrave/cardshop/modules/catalog/application/commands"
	"github.com/unitygrave/cardshop/modules/catalog/application/pricing"
	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/catalog/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// recordingPublisher defers events until commit like the real bus.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, evts ...events.Event) error {
	if p.err != nil {
		return p.err
	}
	transaction.AfterCommit(ctx, func(context.Context) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.events = append(p.events, evts...)
	})
	return nil
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type env struct {
	products   *persistence.InMemoryProductRepository
	overrides  *persistence.InMemoryPriceOverrideRepository
	currencies *persistence.InMemoryCurrencyRepository
	scope      *platformtx.MemoryScope
	publisher  *recordingPublisher
	resolver   *pricing.Resolver
	product    *domain.Product
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{
		products:   persistence.NewInMemoryProductRepository(),
		overrides:  persistence.NewInMemoryPriceOverrideRepository(),
		currencies: persistence.NewInMemoryCurrencyRepository(),
		scope:      platformtx.NewMemoryScope(),
		publisher:  &recordingPublisher{},
	}
	usd, err := types.NewBaseCurrency("USD", "US Dollar", "$")
	require.NoError(t, err)
	eur, err := types.NewCurrency("EUR", "Euro", "€", decimal.RequireFromString("0.90"))
	require.NoError(t, err)
	require.NoError(t, e.currencies.Save(ctx, usd))
	require.NoError(t, e.currencies.Save(ctx, eur))

	e.product, err = domain.NewProduct("Pikachu", "BS-58", types.MustNewMoney(1000, "USD"), domain.ConditionMint)
	require.NoError(t, err)
	require.NoError(t, e.products.Save(ctx, e.product))

	e.resolver = pricing.NewResolver(e.products, e.overrides, e.currencies)
	return e
}

func TestUpsertPriceOverride_InvalidatesCachedPrice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	h := commands.NewUpsertPriceOverrideHandler(e.products, e.overrides, e.currencies, e.scope, e.publisher, e.resolver)

	price, err := e.resolver.ResolvePrice(ctx, e.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), price.Amount())

	err = h.Handle(ctx, commands.UpsertPriceOverrideCommand{
		ProductID:    e.product.ID().String(),
		CurrencyCode: "EUR",
		Price:        799,
		Actor:        "admin",
	})
	require.NoError(t, err)

	price, err = e.resolver.ResolvePrice(ctx, e.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(799), price.Amount())

	evts := e.publisher.published()
	require.Len(t, evts, 1)
	changed := evts[0].(contracts.PriceOverrideChangedEvent)
	assert.Equal(t, "EUR", changed.CurrencyCode)
	assert.True(t, changed.Active)
}

func TestUpsertPriceOverride_RejectsUnknownProductAndCurrency(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	h := commands.NewUpsertPriceOverrideHandler(e.products, e.overrides, e.currencies, e.scope, e.publisher, e.resolver)

	err := h.Handle(ctx, commands.UpsertPriceOverrideCommand{ProductID: types.NewProductID().String(), CurrencyCode: "EUR", Price: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	err = h.Handle(ctx, commands.UpsertPriceOverrideCommand{ProductID: e.product.ID().String(), CurrencyCode: "CHF", Price: 1})
	assert.ErrorIs(t, err, types.ErrCurrencyNotFound)

	err = h.Handle(ctx, commands.UpsertPriceOverrideCommand{ProductID: "nope", CurrencyCode: "EUR", Price: 1})
	assert.ErrorIs(t, err, types.ErrInvalidID)
}

func TestUpsertPriceOverride_RollbackLeavesNoOverride(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.publisher.err = errors.New("bus down")
	h := commands.NewUpsertPriceOverrideHandler(e.products, e.overrides, e.currencies, e.scope, e.publisher, e.resolver)

	err := h.Handle(ctx, commands.UpsertPriceOverrideCommand{ProductID: e.product.ID().String(), CurrencyCode: "EUR", Price: 500})
	require.Error(t, err)

	_, err = e.overrides.Find(ctx, e.product.ID(), "EUR")
	assert.ErrorIs(t, err, domain.ErrOverrideNotFound)

	price, err := e.resolver.ResolvePrice(ctx, e.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), price.Amount())
}

// readingPublisher prices the product inside the unit, then fails it.
type readingPublisher struct {
	resolver *pricing.Resolver
	product  *domain.Product
	seen     int64
}

func (p *readingPublisher) Publish(ctx context.Context, _ ...events.Event) error {
	price, err := p.resolver.ResolvePrice(ctx, p.product, "EUR")
	if err != nil {
		return err
	}
	p.seen = price.Amount()
	return errors.New("bus down")
}

func TestUpsertPriceOverride_RollbackDropsValueCachedMidUnit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pub := &readingPublisher{resolver: e.resolver, product: e.product}
	h := commands.NewUpsertPriceOverrideHandler(e.products, e.overrides, e.currencies, e.scope, pub, e.resolver)

	err := h.Handle(ctx, commands.UpsertPriceOverrideCommand{ProductID: e.product.ID().String(), CurrencyCode: "EUR", Price: 500})
	require.Error(t, err)
	require.Equal(t, int64(500), pub.seen, "the uncommitted override was visible inside the unit")

	price, err := e.resolver.ResolvePrice(ctx, e.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), price.Amount())
}

func TestDeactivatePriceOverride(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	upsert := commands.NewUpsertPriceOverrideHandler(e.products, e.overrides, e.currencies, e.scope, e.publisher, e.resolver)
	deactivate := commands.NewDeactivatePriceOverrideHandler(e.overrides, e.scope, e.publisher, e.resolver)

	require.NoError(t, upsert.Handle(ctx, commands.UpsertPriceOverrideCommand{ProductID: e.product.ID().String(), CurrencyCode: "EUR", Price: 500}))
	price, err := e.resolver.ResolvePrice(ctx, e.product, "EUR")
	require.NoError(t, err)
	require.Equal(t, int64(500), price.Amount())

	require.NoError(t, deactivate.Handle(ctx, commands.DeactivatePriceOverrideCommand{ProductID: e.product.ID().String(), CurrencyCode: "EUR"}))
	price, err = e.resolver.ResolvePrice(ctx, e.product, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), price.Amount())

	stored, err := e.overrides.Find(ctx, e.product.ID(), "EUR")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	err = deactivate.Handle(ctx, commands.DeactivatePriceOverrideCommand{ProductID: e.product.ID().String(), CurrencyCode: "JPY"})
	assert.ErrorIs(t, err, domain.ErrOverrideNotFound)
}

func TestChangeBasePrice_PublishesAfterCommit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	h := commands.NewChangeBasePriceHandler(e.products, e.scope, e.publisher)

	require.NoError(t, h.Handle(ctx, commands.ChangeBasePriceCommand{ProductID: e.product.ID().String(), Price: 1100, Actor: "ops"}))

	stored, err := e.products.FindByID(ctx, e.product.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1100), stored.BasePrice().Amount())

	evts := e.publisher.published()
	require.Len(t, evts, 1)
	changed := evts[0].(contracts.PriceChangedEvent)
	assert.Equal(t, "10", changed.PercentChange.String())
	assert.Equal(t, "ops", changed.Actor)
}

func TestCreateProduct(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	h := commands.NewCreateProductHandler(e.products, e.currencies, e.scope)

	id, err := h.Handle(ctx, commands.CreateProductCommand{Name: "Mew", SKU: "PR-8", Price: 2500, CurrencyCode: "EUR", Condition: "mint"})
	require.NoError(t, err)
	p, err := e.products.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.BaseCurrencyCode())

	_, err = h.Handle(ctx, commands.CreateProductCommand{Name: "Mew 2", SKU: "pr-8", Price: 1, CurrencyCode: "USD", Condition: "mint"})
	assert.ErrorIs(t, err, domain.ErrDuplicateSKU)

	_, err = h.Handle(ctx, commands.CreateProductCommand{Name: "Mew 3", SKU: "PR-9", Price: 1, CurrencyCode: "CHF", Condition: "mint"})
	assert.ErrorIs(t, err, types.ErrCurrencyNotFound)
}
