// Package orders places orders from carts and runs their lifecycle.
// This is the public API for the orders bounded context.
package orders

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unitygrave/cardshop/modules/orders/application/commands"
	"github.com/unitygrave/cardshop/modules/orders/application/queries"
	"github.com/unitygrave/cardshop/modules/orders/domain"
	httphandler "github.com/unitygrave/cardshop/modules/orders/infrastructure/http"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
)

// Module is the public API for the orders bounded context.
// External communication: HTTP API (RegisterRoutes)
// Cross-module communication: ports for cart, pricing and inventory; order
// events published after commit.
type Module interface {
	// RegisterRoutes registers the module's HTTP routes to the given mux.
	RegisterRoutes(mux *http.ServeMux)

	PlaceOrder(ctx context.Context, cmd commands.PlaceOrderCommand) (*queries.OrderDTO, error)
	Cancel(ctx context.Context, cmd commands.CancelOrderCommand) (*queries.OrderDTO, error)
	Refund(ctx context.Context, cmd commands.RefundOrderCommand) (*queries.OrderDTO, error)
	UpdateStatus(ctx context.Context, cmd commands.UpdateStatusCommand) (*queries.OrderDTO, error)
	GetOrder(ctx context.Context, orderID string) (*queries.OrderDTO, error)
	ListUserOrders(ctx context.Context, query queries.ListUserOrdersQuery) (*queries.OrderListDTO, error)
}

// Config holds the module configuration.
type Config struct {
	Repository     domain.OrderRepository
	Cart           commands.Cart
	Pricing        commands.Pricing
	Inventory      commands.Inventory
	TxScope        transaction.Scope
	EventPublisher events.Publisher
	Observer       commands.Observer
	Logger         *slog.Logger

	TaxRate         decimal.Decimal
	ShippingFlat    int64
	CheckoutTimeout time.Duration
}

type module struct {
	placeOrderHandler *commands.PlaceOrderHandler
	lifecycleHandler  *commands.LifecycleHandler
	getOrderHandler   *queries.GetOrderHandler
	listUserOrders    *queries.ListUserOrdersHandler
	pricing           httphandler.Pricing
}

// New creates a new orders module.
func New(cfg Config) Module {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "orders")

	placeOrderHandler := commands.NewPlaceOrderHandler(
		cfg.Repository, cfg.Cart, cfg.Pricing, cfg.Inventory, cfg.TxScope, cfg.EventPublisher,
		commands.WithTimeout(cfg.CheckoutTimeout),
		commands.WithObserver(cfg.Observer),
		commands.WithLogger(logger),
	)
	lifecycleHandler := commands.NewLifecycleHandler(cfg.Repository, cfg.Inventory, cfg.TxScope, cfg.EventPublisher, cfg.Observer, logger)

	return &module{
		placeOrderHandler: placeOrderHandler,
		lifecycleHandler:  lifecycleHandler,
		getOrderHandler:   queries.NewGetOrderHandler(cfg.Repository),
		listUserOrders:    queries.NewListUserOrdersHandler(cfg.Repository),
		pricing:           httphandler.Pricing{TaxRate: cfg.TaxRate, ShippingFlat: cfg.ShippingFlat},
	}
}

func (m *module) RegisterRoutes(mux *http.ServeMux) {
	httphandler.RegisterRoutes(mux, m.placeOrderHandler, m.lifecycleHandler, m.getOrderHandler, m.listUserOrders, m.pricing)
}

func (m *module) PlaceOrder(ctx context.Context, cmd commands.PlaceOrderCommand) (*queries.OrderDTO, error) {
	return toDTO(m.placeOrderHandler.Handle(ctx, cmd))
}

func (m *module) Cancel(ctx context.Context, cmd commands.CancelOrderCommand) (*queries.OrderDTO, error) {
	return toDTO(m.lifecycleHandler.Cancel(ctx, cmd))
}

func (m *module) Refund(ctx context.Context, cmd commands.RefundOrderCommand) (*queries.OrderDTO, error) {
	return toDTO(m.lifecycleHandler.Refund(ctx, cmd))
}

func (m *module) UpdateStatus(ctx context.Context, cmd commands.UpdateStatusCommand) (*queries.OrderDTO, error) {
	return toDTO(m.lifecycleHandler.UpdateStatus(ctx, cmd))
}

func (m *module) GetOrder(ctx context.Context, orderID string) (*queries.OrderDTO, error) {
	return m.getOrderHandler.Handle(ctx, queries.GetOrderQuery{OrderID: orderID})
}

func (m *module) ListUserOrders(ctx context.Context, query queries.ListUserOrdersQuery) (*queries.OrderListDTO, error) {
	return m.listUserOrders.Handle(ctx, query)
}

func toDTO(order *domain.Order, err error) (*queries.OrderDTO, error) {
	if err != nil {
		return nil, err
	}
	return queries.ToOrderDTO(order), nil
}
