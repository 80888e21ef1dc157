// Package inventory owns per-product stock levels.
// This is the public API for the inventory bounded context.
package inventory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/unitygrave/cardshop/modules/inventory/application"
	"github.com/unitygrave/cardshop/modules/inventory/domain"
	httphandler "github.com/unitygrave/cardshop/modules/inventory/infrastructure/http"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Stock movement reasons accepted by Decrement and Restore.
const (
	ReasonOrderPlaced    = string(domain.ReasonOrderPlaced)
	ReasonOrderCancelled = string(domain.ReasonOrderCancelled)
	ReasonOrderRefunded  = string(domain.ReasonOrderRefunded)
)

// Module is the public API for the inventory bounded context. Decrement and
// Restore join the caller's transaction; SetStock runs its own.
type Module interface {
	RegisterRoutes(mux *http.ServeMux)

	Levels(ctx context.Context, productIDs []types.ProductID) (map[types.ProductID]int, error)
	Decrement(ctx context.Context, productID types.ProductID, quantity int, reason, actor, reference string) error
	Restore(ctx context.Context, productID types.ProductID, quantity int, reason, actor, reference string) error
	SetStock(ctx context.Context, productID types.ProductID, quantity int, actor string) error
}

// Config holds the module configuration.
type Config struct {
	Repository        domain.Repository
	TxScope           transaction.Scope
	EventPublisher    events.Publisher
	LowStockThreshold int
	Logger            *slog.Logger
}

type module struct {
	ledger  *application.Ledger
	txScope transaction.Scope
	logger  *slog.Logger
}

// New creates a new inventory module.
func New(cfg Config) Module {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &module{
		ledger:  application.NewLedger(cfg.Repository, cfg.EventPublisher, cfg.LowStockThreshold),
		txScope: cfg.TxScope,
		logger:  logger.With("module", "inventory"),
	}
}

func (m *module) RegisterRoutes(mux *http.ServeMux) {
	httphandler.RegisterRoutes(mux, m)
}

func (m *module) Levels(ctx context.Context, productIDs []types.ProductID) (map[types.ProductID]int, error) {
	return m.ledger.Levels(ctx, productIDs)
}

func (m *module) Decrement(ctx context.Context, productID types.ProductID, quantity int, reason, actor, reference string) error {
	return m.ledger.Decrement(ctx, application.Movement{
		ProductID: productID,
		Quantity:  quantity,
		Reason:    domain.Reason(reason),
		Actor:     actor,
		Reference: reference,
	})
}

func (m *module) Restore(ctx context.Context, productID types.ProductID, quantity int, reason, actor, reference string) error {
	return m.ledger.Restore(ctx, application.Movement{
		ProductID: productID,
		Quantity:  quantity,
		Reason:    domain.Reason(reason),
		Actor:     actor,
		Reference: reference,
	})
}

func (m *module) SetStock(ctx context.Context, productID types.ProductID, quantity int, actor string) error {
	err := m.txScope.Execute(ctx, func(ctx context.Context) error {
		return m.ledger.Set(ctx, productID, quantity, actor)
	})
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "stock set", slog.String("product_id", productID.String()), slog.Int("quantity", quantity))
	return nil
}
