package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unitygrave/cardshop/modules/orders/domain"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// maxNumberAttempts bounds order number regeneration on collision, both
// before the insert and when a concurrent insert wins at commit.
const maxNumberAttempts = 5

var errOrderNumberCollision = errors.New("order number collision")

// PlaceOrderCommand turns the caller's cart into an order.
type PlaceOrderCommand struct {
	Identity      types.Identity
	Currency      string
	PaymentMethod string
	Contact       domain.Contact
	Shipping      domain.Address
	Instructions  string
	// TaxRate is a fraction, e.g. 0.08.
	TaxRate decimal.Decimal
	// ShippingBase is the flat shipping fee in base-currency minor units.
	ShippingBase int64
}

type PlaceOrderHandler struct {
	repo      domain.OrderRepository
	cart      Cart
	pricing   Pricing
	inventory Inventory
	txScope   transaction.Scope
	publisher events.Publisher
	observer  Observer
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
	newNumber func(time.Time) (string, error)
}

type PlaceOption func(*PlaceOrderHandler)

// WithTimeout bounds the whole placement. When it fires the unit of work
// rolls back like any other fault.
func WithTimeout(d time.Duration) PlaceOption {
	return func(h *PlaceOrderHandler) { h.timeout = d }
}

func WithObserver(o Observer) PlaceOption {
	return func(h *PlaceOrderHandler) {
		if o != nil {
			h.observer = o
		}
	}
}

func WithLogger(l *slog.Logger) PlaceOption {
	return func(h *PlaceOrderHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithClock(now func() time.Time) PlaceOption {
	return func(h *PlaceOrderHandler) { h.now = now }
}

// WithNumberGenerator replaces the random order number source.
func WithNumberGenerator(gen func(time.Time) (string, error)) PlaceOption {
	return func(h *PlaceOrderHandler) { h.newNumber = gen }
}

func NewPlaceOrderHandler(
	repo domain.OrderRepository,
	cart Cart,
	pricing Pricing,
	inventory Inventory,
	txScope transaction.Scope,
	publisher events.Publisher,
	opts ...PlaceOption,
) *PlaceOrderHandler {
	h := &PlaceOrderHandler{
		repo:      repo,
		cart:      cart,
		pricing:   pricing,
		inventory: inventory,
		txScope:   txScope,
		publisher: publisher,
		observer:  nopObserver{},
		logger:    slog.Default(),
		now:       time.Now,
		newNumber: domain.NewOrderNumber,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle places the order atomically: stock is checked and decremented, the
// order and its items are stored and the cart is cleared, or nothing changes.
func (h *PlaceOrderHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	start := time.Now()
	order, err := h.place(ctx, cmd)
	h.observer.ObserveCheckout(checkoutOutcome(err), time.Since(start))
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceFailure) {
			h.logger.ErrorContext(ctx, "order placement failed", slog.String("cart", cmd.Identity.Key()), slog.Any("error", err))
		}
		return nil, err
	}
	h.logger.InfoContext(ctx, "order placed",
		slog.String("order_number", order.Number()),
		slog.Int64("total_base", order.BaseTotals().Total.Amount()),
	)
	return order, nil
}

func (h *PlaceOrderHandler) place(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	method, err := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCheckout(cmd.Contact, cmd.Shipping); err != nil {
		return nil, err
	}
	if cmd.TaxRate.IsNegative() || cmd.ShippingBase < 0 {
		return nil, domain.ErrInvalidPricingInput
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	base, err := h.pricing.BaseCurrency(ctx)
	if err != nil {
		return nil, classify(err)
	}
	display := base
	if code := strings.ToUpper(strings.TrimSpace(cmd.Currency)); code != "" && code != base.Code {
		if display, err = h.pricing.Currency(ctx, code); err != nil {
			return nil, classify(err)
		}
	}

	var order *domain.Order
	for attempt := 1; ; attempt++ {
		order, err = transaction.ExecuteWithResult(ctx, h.txScope, func(ctx context.Context) (*domain.Order, error) {
			return h.placeOnce(ctx, cmd, method, base, display)
		})
		if !errors.Is(err, transaction.ErrDuplicateKey) || attempt == maxNumberAttempts {
			break
		}
		h.logger.WarnContext(ctx, "order number taken at commit, retrying", slog.Int("attempt", attempt))
	}
	if err != nil {
		return nil, classify(err)
	}
	return order, nil
}

// placeOnce is one attempt at placement inside a unit of work.
func (h *PlaceOrderHandler) placeOnce(ctx context.Context, cmd PlaceOrderCommand, method domain.PaymentMethod, base, display types.Currency) (*domain.Order, error) {
	lines, err := h.cart.Lines(ctx, cmd.Identity)
	if err != nil {
		return nil, fmt.Errorf("reading cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if err := h.checkStock(ctx, lines); err != nil {
		return nil, err
	}

	items, err := h.priceLines(ctx, lines, base, display)
	if err != nil {
		return nil, err
	}
	baseTotals, displayTotals, err := totals(items, base, display, cmd.TaxRate, cmd.ShippingBase)
	if err != nil {
		return nil, err
	}

	now := h.now()
	number, err := h.allocateNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(domain.PlaceParams{
		Number:        number,
		Identity:      cmd.Identity,
		PaymentMethod: method,
		Contact:       cmd.Contact,
		Shipping:      cmd.Shipping,
		Instructions:  cmd.Instructions,
		Items:         items,
		Base:          baseTotals,
		Display:       displayTotals,
		Rate: domain.RateSnapshot{
			BaseCurrency:    base.Code,
			DisplayCurrency: display.Code,
			Rate:            display.Rate(),
		},
		Now: now,
	})
	if err != nil {
		return nil, err
	}
	if err := h.repo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("saving order: %w", err)
	}

	actor := cmd.Identity.Key()
	for _, it := range items {
		if err := h.inventory.Decrement(ctx, it.ProductID, it.Quantity, StockOrderPlaced, actor, number); err != nil {
			return nil, fmt.Errorf("decrementing stock: %w", err)
		}
	}
	if err := h.cart.Clear(ctx, cmd.Identity); err != nil {
		return nil, fmt.Errorf("clearing cart: %w", err)
	}
	if err := h.publisher.Publish(ctx, order.PopDomainEvents()...); err != nil {
		return nil, fmt.Errorf("publishing events: %w", err)
	}
	return order, nil
}

// checkStock validates every line before anything is written. The first
// shortfall in cart order is reported.
func (h *PlaceOrderHandler) checkStock(ctx context.Context, lines []CartLine) error {
	ids := make([]types.ProductID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	levels, err := h.inventory.Levels(ctx, ids)
	if err != nil {
		return fmt.Errorf("reading stock: %w", err)
	}
	for _, l := range lines {
		if available := levels[l.ProductID]; available < l.Quantity {
			return &types.InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity, Available: available}
		}
	}
	return nil
}

func (h *PlaceOrderHandler) priceLines(ctx context.Context, lines []CartLine, base, display types.Currency) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		unitBase, err := h.pricing.ResolvePrice(ctx, l.ProductID, base.Code)
		if err != nil {
			return nil, fmt.Errorf("pricing %s: %w", l.ProductID, err)
		}
		unitDisplay := unitBase
		if display.Code != base.Code {
			if unitDisplay, err = h.pricing.ResolvePrice(ctx, l.ProductID, display.Code); err != nil {
				return nil, fmt.Errorf("pricing %s: %w", l.ProductID, err)
			}
		}
		qty := int64(l.Quantity)
		items = append(items, domain.OrderItem{
			ProductID:        l.ProductID,
			ProductName:      l.Name,
			SKU:              l.SKU,
			Quantity:         l.Quantity,
			UnitPriceDisplay: unitDisplay,
			UnitPriceBase:    unitBase,
			LineTotalDisplay: unitDisplay.Multiply(qty),
			LineTotalBase:    unitBase.Multiply(qty),
		})
	}
	return items, nil
}

// totals computes the base figures from base line totals and the display
// figures from display line totals, so an override in either currency is
// honoured exactly.
func totals(items []domain.OrderItem, base, display types.Currency, taxRate decimal.Decimal, shippingBase int64) (domain.Totals, domain.Totals, error) {
	baseSub, displaySub := types.Zero(base.Code), types.Zero(display.Code)
	for _, it := range items {
		var err error
		if baseSub, err = baseSub.Add(it.LineTotalBase); err != nil {
			return domain.Totals{}, domain.Totals{}, err
		}
		if displaySub, err = displaySub.Add(it.LineTotalDisplay); err != nil {
			return domain.Totals{}, domain.Totals{}, err
		}
	}

	shipBase, err := types.NewMoney(shippingBase, base.Code)
	if err != nil {
		return domain.Totals{}, domain.Totals{}, err
	}
	shipDisplay, err := types.Convert(shipBase, base, display)
	if err != nil {
		return domain.Totals{}, domain.Totals{}, err
	}

	baseTotals, err := domain.ComputeTotals(baseSub, taxRate, shipBase)
	if err != nil {
		return domain.Totals{}, domain.Totals{}, err
	}
	displayTotals, err := domain.ComputeTotals(displaySub, taxRate, shipDisplay)
	if err != nil {
		return domain.Totals{}, domain.Totals{}, err
	}
	return baseTotals, displayTotals, nil
}

func (h *PlaceOrderHandler) allocateNumber(ctx context.Context, now time.Time) (string, error) {
	for range maxNumberAttempts {
		number, err := h.newNumber(now)
		if err != nil {
			return "", err
		}
		taken, err := h.repo.ExistsByNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("checking order number: %w", err)
		}
		if !taken {
			return number, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", errOrderNumberCollision, maxNumberAttempts)
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "placed"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, types.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, types.ErrCurrencyNotFound):
		return "currency_not_found"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "failed"
	default:
		return "rejected"
	}
}
