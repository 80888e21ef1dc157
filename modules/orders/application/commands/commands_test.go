package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformtx "github.com/unitygrave/cardshop/internal/platform/transaction"
	"github.com/unitygrave/cardshop/modules/orders/application/commands"
	"github.com/unitygrave/cardshop/modules/orders/domain"
	"github.com/unitygrave/cardshop/modules/orders/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// fakeCart journals Clear so a rolled back placement keeps the cart.
type fakeCart struct {
	mu      sync.Mutex
	lines   map[string][]commands.CartLine
	linesFn func(ctx context.Context) error
}

func (c *fakeCart) Lines(ctx context.Context, id types.Identity) ([]commands.CartLine, error) {
	if c.linesFn != nil {
		if err := c.linesFn(ctx); err != nil {
			return nil, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]commands.CartLine(nil), c.lines[id.Key()]...), nil
}

func (c *fakeCart) Clear(ctx context.Context, id types.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.lines[id.Key()]
	delete(c.lines, id.Key())
	transaction.OnRollback(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.lines[id.Key()] = prev
	})
	return nil
}

func (c *fakeCart) count(id types.Identity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines[id.Key()])
}

// fakePricing prices in the base currency and converts, unless an override
// is set for the code.
type fakePricing struct {
	currencies map[string]types.Currency
	basePrices map[types.ProductID]int64
	overrides  map[types.ProductID]map[string]int64
}

func (p *fakePricing) ResolvePrice(_ context.Context, id types.ProductID, code string) (types.Money, error) {
	if amount, ok := p.overrides[id][code]; ok {
		return types.MustNewMoney(amount, code), nil
	}
	to, ok := p.currencies[code]
	if !ok {
		return types.Money{}, &types.CurrencyNotFoundError{Code: code}
	}
	return types.Convert(types.MustNewMoney(p.basePrices[id], "USD"), p.currencies["USD"], to)
}

func (p *fakePricing) Currency(_ context.Context, code string) (types.Currency, error) {
	c, ok := p.currencies[code]
	if !ok {
		return types.Currency{}, &types.CurrencyNotFoundError{Code: code}
	}
	return c, nil
}

func (p *fakePricing) BaseCurrency(context.Context) (types.Currency, error) {
	return p.currencies["USD"], nil
}

type movement struct {
	productID types.ProductID
	quantity  int
	reason    commands.StockReason
}

// fakeInventory journals every change like the real ledger.
type fakeInventory struct {
	mu          sync.Mutex
	stock       map[types.ProductID]int
	movements   []movement
	decrementFn func(id types.ProductID) error
}

func (i *fakeInventory) Levels(_ context.Context, ids []types.ProductID) (map[types.ProductID]int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[types.ProductID]int, len(ids))
	for _, id := range ids {
		out[id] = i.stock[id]
	}
	return out, nil
}

func (i *fakeInventory) Decrement(ctx context.Context, id types.ProductID, qty int, reason commands.StockReason, _, _ string) error {
	if i.decrementFn != nil {
		if err := i.decrementFn(id); err != nil {
			return err
		}
	}
	return i.apply(ctx, id, -qty, reason)
}

func (i *fakeInventory) Restore(ctx context.Context, id types.ProductID, qty int, reason commands.StockReason, _, _ string) error {
	return i.apply(ctx, id, qty, reason)
}

func (i *fakeInventory) apply(ctx context.Context, id types.ProductID, delta int, reason commands.StockReason) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	prev := i.stock[id]
	if prev+delta < 0 {
		return &types.InsufficientStockError{ProductID: id, Requested: -delta, Available: prev}
	}
	i.stock[id] = prev + delta
	i.movements = append(i.movements, movement{productID: id, quantity: delta, reason: reason})
	transaction.OnRollback(ctx, func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		i.stock[id] = prev
		i.movements = i.movements[:len(i.movements)-1]
	})
	return nil
}

func (i *fakeInventory) level(id types.ProductID) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stock[id]
}

// recordingPublisher defers events until commit like the real bus.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evts ...events.Event) error {
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

type recordingObserver struct {
	mu        sync.Mutex
	checkouts []string
	lifecycle []string
}

func (o *recordingObserver) ObserveCheckout(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checkouts = append(o.checkouts, outcome)
}

func (o *recordingObserver) ObserveLifecycle(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lifecycle = append(o.lifecycle, op+":"+outcome)
}

type env struct {
	repo      *persistence.InMemoryRepository
	cart      *fakeCart
	pricing   *fakePricing
	inventory *fakeInventory
	publisher *recordingPublisher
	observer  *recordingObserver
	scope     *platformtx.MemoryScope
	shopper   types.Identity
	card      types.ProductID
	booster   types.ProductID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	usd, err := types.NewBaseCurrency("USD", "US Dollar", "$")
	require.NoError(t, err)
	eur, err := types.NewCurrency("EUR", "Euro", "€", decimal.RequireFromString("0.90"))
	require.NoError(t, err)

	e := &env{
		repo:      persistence.NewInMemoryRepository(),
		publisher: &recordingPublisher{},
		observer:  &recordingObserver{},
		scope:     platformtx.NewMemoryScope(),
		shopper:   types.Identity{UserID: types.NewUserID()},
		card:      types.NewProductID(),
		booster:   types.NewProductID(),
	}
	e.pricing = &fakePricing{
		currencies: map[string]types.Currency{"USD": usd, "EUR": eur},
		basePrices: map[types.ProductID]int64{e.card: 1000, e.booster: 450},
	}
	e.inventory = &fakeInventory{stock: map[types.ProductID]int{e.card: 2, e.booster: 10}}
	e.cart = &fakeCart{lines: map[string][]commands.CartLine{
		e.shopper.Key(): {
			{ProductID: e.card, Name: "Charizard", SKU: "BS-4", Quantity: 2},
			{ProductID: e.booster, Name: "Jungle Booster", SKU: "JU-BP", Quantity: 1},
		},
	}}
	return e
}

func (e *env) placeHandler(opts ...commands.PlaceOption) *commands.PlaceOrderHandler {
	opts = append([]commands.PlaceOption{commands.WithObserver(e.observer)}, opts...)
	return commands.NewPlaceOrderHandler(e.repo, e.cart, e.pricing, e.inventory, e.scope, e.publisher, opts...)
}

func (e *env) lifecycleHandler() *commands.LifecycleHandler {
	return commands.NewLifecycleHandler(e.repo, e.inventory, e.scope, e.publisher, e.observer, nil)
}

func (e *env) placeCommand(currency string) commands.PlaceOrderCommand {
	return commands.PlaceOrderCommand{
		Identity:      e.shopper,
		Currency:      currency,
		PaymentMethod: "credit_card",
		Contact:       domain.Contact{Name: "Ash", Email: "ash@example.com"},
		Shipping:      domain.Address{Line1: "1 Route", City: "Pallet", Country: "JP"},
		TaxRate:       decimal.RequireFromString("0.08"),
		ShippingBase:  500,
	}
}

func TestPlaceOrder_BaseCurrency(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	order, err := e.placeHandler().Handle(ctx, e.placeCommand("USD"))
	require.NoError(t, err)

	base := order.BaseTotals()
	assert.Equal(t, int64(2450), base.Subtotal.Amount())
	assert.Equal(t, int64(196), base.Tax.Amount())
	assert.Equal(t, int64(500), base.Shipping.Amount())
	assert.Equal(t, int64(3146), base.Total.Amount())
	assert.Equal(t, base, order.DisplayTotals())
	assert.True(t, domain.IsOrderNumber(order.Number()))

	assert.Equal(t, 0, e.inventory.level(e.card))
	assert.Equal(t, 9, e.inventory.level(e.booster))
	assert.Zero(t, e.cart.count(e.shopper))

	stored, err := e.repo.FindByNumber(ctx, order.Number())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status())
	assert.Len(t, stored.Items(), 2)

	published := e.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, contracts.OrderPlacedEventType, published[0].EventType())
	assert.Equal(t, []string{"placed"}, e.observer.checkouts)
}

func TestPlaceOrder_DisplayCurrency(t *testing.T) {
	e := newEnv(t)
	e.pricing.overrides = map[types.ProductID]map[string]int64{e.booster: {"EUR": 399}}

	order, err := e.placeHandler().Handle(context.Background(), e.placeCommand("eur"))
	require.NoError(t, err)

	items := order.Items()
	assert.Equal(t, int64(900), items[0].UnitPriceDisplay.Amount())
	assert.Equal(t, int64(1000), items[0].UnitPriceBase.Amount())
	assert.Equal(t, int64(399), items[1].UnitPriceDisplay.Amount(), "override wins in the display currency")

	display := order.DisplayTotals()
	assert.Equal(t, "EUR", display.Total.Currency())
	assert.Equal(t, int64(2199), display.Subtotal.Amount())
	assert.Equal(t, int64(450), display.Shipping.Amount())
	assert.Equal(t, int64(3146), order.BaseTotals().Total.Amount())
	assert.True(t, order.Rate().Rate.Equal(decimal.RequireFromString("0.90")))
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	e := newEnv(t)
	e.cart.lines = map[string][]commands.CartLine{}

	_, err := e.placeHandler().Handle(context.Background(), e.placeCommand("USD"))
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, []string{"empty_cart"}, e.observer.checkouts)
}

func TestPlaceOrder_InsufficientStockChangesNothing(t *testing.T) {
	e := newEnv(t)
	e.inventory.stock[e.booster] = 0

	_, err := e.placeHandler().Handle(context.Background(), e.placeCommand("USD"))

	var shortfall *types.InsufficientStockError
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t, e.booster, shortfall.ProductID)
	assert.Equal(t, 1, shortfall.Requested)
	assert.Equal(t, 0, shortfall.Available)

	assert.Equal(t, 2, e.inventory.level(e.card))
	assert.Equal(t, 2, e.cart.count(e.shopper))
	assert.Empty(t, e.inventory.movements)
	assert.Empty(t, e.publisher.published())
	assert.Equal(t, []string{"insufficient_stock"}, e.observer.checkouts)
}

func TestPlaceOrder_FailureRollsBackEverything(t *testing.T) {
	e := newEnv(t)
	boom := errors.New("disk on fire")
	e.inventory.decrementFn = func(id types.ProductID) error {
		if id == e.booster {
			return boom
		}
		return nil
	}

	_, err := e.placeHandler().Handle(context.Background(), e.placeCommand("USD"))
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 2, e.inventory.level(e.card), "first decrement undone")
	assert.Empty(t, e.inventory.movements)
	assert.Equal(t, 2, e.cart.count(e.shopper))
	assert.Empty(t, e.publisher.published())

	list, total, err := e.repo.FindByUserID(context.Background(), e.shopper.UserID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
	assert.Equal(t, []string{"failed"}, e.observer.checkouts)
}

func TestPlaceOrder_RegeneratesCollidingNumbers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.inventory.stock[e.card] = 10

	fixed := func(time.Time) (string, error) { return "ORD-2026-AAAAAAAA", nil }
	first, err := e.placeHandler(commands.WithNumberGenerator(fixed)).Handle(ctx, e.placeCommand("USD"))
	require.NoError(t, err)

	calls := 0
	gen := func(time.Time) (string, error) {
		calls++
		if calls < 3 {
			return first.Number(), nil
		}
		return "ORD-2026-BBBBBBBB", nil
	}
	e.cart.lines[e.shopper.Key()] = []commands.CartLine{{ProductID: e.card, Quantity: 1}}
	second, err := e.placeHandler(commands.WithNumberGenerator(gen)).Handle(ctx, e.placeCommand("USD"))
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-BBBBBBBB", second.Number())
	assert.Equal(t, 3, calls)
}

func TestPlaceOrder_NumberExhaustionIsPersistenceFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.inventory.stock[e.card] = 10

	fixed := func(time.Time) (string, error) { return "ORD-2026-AAAAAAAA", nil }
	_, err := e.placeHandler(commands.WithNumberGenerator(fixed)).Handle(ctx, e.placeCommand("USD"))
	require.NoError(t, err)

	e.cart.lines[e.shopper.Key()] = []commands.CartLine{{ProductID: e.card, Quantity: 1}}
	_, err = e.placeHandler(commands.WithNumberGenerator(fixed)).Handle(ctx, e.placeCommand("USD"))
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.Equal(t, 1, e.cart.count(e.shopper))
}

// blindRepo misses numbers taken by a concurrent placement, so the clash only
// shows up when the order is stored.
type blindRepo struct {
	*persistence.InMemoryRepository
}

func (blindRepo) ExistsByNumber(context.Context, string) (bool, error) { return false, nil }

func TestPlaceOrder_RetriesWhenNumberTakenAtInsert(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.inventory.stock[e.card] = 10

	fixed := func(time.Time) (string, error) { return "ORD-2026-AAAAAAAA", nil }
	first, err := e.placeHandler(commands.WithNumberGenerator(fixed)).Handle(ctx, e.placeCommand("USD"))
	require.NoError(t, err)

	calls := 0
	gen := func(time.Time) (string, error) {
		calls++
		if calls == 1 {
			return first.Number(), nil
		}
		return "ORD-2026-CCCCCCCC", nil
	}
	e.cart.lines[e.shopper.Key()] = []commands.CartLine{{ProductID: e.card, Quantity: 1}}
	h := commands.NewPlaceOrderHandler(blindRepo{e.repo}, e.cart, e.pricing, e.inventory, e.scope, e.publisher,
		commands.WithNumberGenerator(gen))

	second, err := h.Handle(ctx, e.placeCommand("USD"))
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-CCCCCCCC", second.Number())
	assert.Equal(t, 2, calls)
	assert.Equal(t, 7, e.inventory.level(e.card))
	assert.Zero(t, e.cart.count(e.shopper))

	stored, err := e.repo.FindByNumber(ctx, first.Number())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), stored.ID())
}

func TestPlaceOrder_InsertClashExhaustsRetries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.inventory.stock[e.card] = 10

	fixed := func(time.Time) (string, error) { return "ORD-2026-AAAAAAAA", nil }
	_, err := e.placeHandler(commands.WithNumberGenerator(fixed)).Handle(ctx, e.placeCommand("USD"))
	require.NoError(t, err)

	e.cart.lines[e.shopper.Key()] = []commands.CartLine{{ProductID: e.card, Quantity: 1}}
	h := commands.NewPlaceOrderHandler(blindRepo{e.repo}, e.cart, e.pricing, e.inventory, e.scope, e.publisher,
		commands.WithNumberGenerator(fixed))

	_, err = h.Handle(ctx, e.placeCommand("USD"))
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.ErrorIs(t, err, transaction.ErrDuplicateKey)
	assert.Equal(t, 8, e.inventory.level(e.card))
	assert.Equal(t, 1, e.cart.count(e.shopper))
}

func TestPlaceOrder_Rejections(t *testing.T) {
	e := newEnv(t)
	h := e.placeHandler()

	cmd := e.placeCommand("JPY")
	_, err := h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, types.ErrCurrencyNotFound)

	cmd = e.placeCommand("USD")
	cmd.PaymentMethod = "barter"
	_, err = h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	cmd = e.placeCommand("USD")
	cmd.Shipping.Line1 = ""
	_, err = h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	cmd = e.placeCommand("USD")
	cmd.TaxRate = decimal.NewFromInt(-1)
	_, err = h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidPricingInput)

	cmd = e.placeCommand("USD")
	cmd.ShippingBase = -10000
	_, err = h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidPricingInput)
	assert.Equal(t, 2, e.cart.count(e.shopper))

	assert.Equal(t, 2, e.inventory.level(e.card))
}

func TestPlaceOrder_TimeoutRollsBack(t *testing.T) {
	e := newEnv(t)
	e.cart.linesFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := e.placeHandler(commands.WithTimeout(20*time.Millisecond)).Handle(context.Background(), e.placeCommand("USD"))
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, e.cart.count(e.shopper))
}

func placeOne(t *testing.T, e *env) *domain.Order {
	t.Helper()
	order, err := e.placeHandler().Handle(context.Background(), e.placeCommand("USD"))
	require.NoError(t, err)
	return order
}

func TestCancel_RestoresStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := placeOne(t, e)
	h := e.lifecycleHandler()

	cancelled, err := h.Cancel(ctx, commands.CancelOrderCommand{OrderID: order.ID().String(), Reason: "duplicate", Actor: "ash"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status())
	assert.Equal(t, 2, e.inventory.level(e.card))
	assert.Equal(t, 10, e.inventory.level(e.booster))

	_, err = h.Cancel(ctx, commands.CancelOrderCommand{OrderID: order.ID().String()})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 2, e.inventory.level(e.card), "a rejected cancel restores nothing")
	assert.Equal(t, []string{"cancel:ok", "cancel:rejected"}, e.observer.lifecycle)
}

func TestRefund_PartialThenFull(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := placeOne(t, e)
	h := e.lifecycleHandler()
	id := order.ID().String()

	_, err := h.UpdateStatus(ctx, commands.UpdateStatusCommand{OrderID: id, Status: "shipped", Actor: "staff"})
	require.NoError(t, err)

	partial, err := h.Refund(ctx, commands.RefundOrderCommand{OrderID: id, Amount: 1000, Reason: "bent corner", Actor: "staff"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, partial.Status())
	assert.Equal(t, 0, e.inventory.level(e.card), "partial refunds keep stock out")

	_, err = h.Refund(ctx, commands.RefundOrderCommand{OrderID: id, Amount: 5000})
	assert.ErrorIs(t, err, domain.ErrRefundExceedsTotal)

	full, err := h.Refund(ctx, commands.RefundOrderCommand{OrderID: id, Amount: 2146, Actor: "staff"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, full.Status())
	assert.Equal(t, 2, e.inventory.level(e.card))
	assert.Equal(t, 10, e.inventory.level(e.booster))

	last := e.inventory.movements[len(e.inventory.movements)-1]
	assert.Equal(t, commands.StockOrderRefunded, last.reason)

	_, err = h.Refund(ctx, commands.RefundOrderCommand{OrderID: id, Amount: 1})
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyRefunded)
}

func TestUpdateStatus_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	h := e.lifecycleHandler()

	_, err := h.UpdateStatus(ctx, commands.UpdateStatusCommand{OrderID: "not-a-uuid", Status: "shipped"})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = h.UpdateStatus(ctx, commands.UpdateStatusCommand{OrderID: types.NewOrderID().String(), Status: "shipped"})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	order := placeOne(t, e)
	_, err = h.UpdateStatus(ctx, commands.UpdateStatusCommand{OrderID: order.ID().String(), Status: "cancelled"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
