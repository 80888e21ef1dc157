// Package cart provides shopping carts for identified and anonymous shoppers.
// This is the public API for the cart bounded context.
package cart

import (
	"context"
	"net/http"

	"github.com/unitygrave/cardshop/modules/cart/application"
	"github.com/unitygrave/cardshop/modules/cart/domain"
	httphandler "github.com/unitygrave/cardshop/modules/cart/infrastructure/http"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Line is a cart line as seen by checkout.
type Line struct {
	ProductID types.ProductID
	Name      string
	SKU       string
	Quantity  int
}

// Module is the public API for the cart bounded context.
type Module interface {
	RegisterRoutes(mux *http.ServeMux)

	// Lines returns the caller's resolvable lines in cart order.
	Lines(ctx context.Context, id types.Identity) ([]Line, error)
	// Clear joins the caller's transaction when there is one.
	Clear(ctx context.Context, id types.Identity) error
	Service() *application.Service
}

// Config holds the module configuration.
type Config struct {
	PersistedStore domain.Store
	SessionStore   domain.Store
	Catalog        application.Catalog
	TxScope        transaction.Scope
	// ReadScope is optional; cart views then read from one snapshot.
	ReadScope    transaction.Scope
	BaseCurrency string
}

type module struct {
	service      *application.Service
	baseCurrency string
}

// New creates a new cart module.
func New(cfg Config) Module {
	var opts []application.Option
	if cfg.ReadScope != nil {
		opts = append(opts, application.WithReadScope(cfg.ReadScope))
	}
	return &module{
		service:      application.NewService(cfg.PersistedStore, cfg.SessionStore, cfg.Catalog, cfg.TxScope, opts...),
		baseCurrency: cfg.BaseCurrency,
	}
}

func (m *module) RegisterRoutes(mux *http.ServeMux) {
	httphandler.RegisterRoutes(mux, m.service, m.baseCurrency)
}

func (m *module) Lines(ctx context.Context, id types.Identity) ([]Line, error) {
	items, err := m.service.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, len(items))
	for i, it := range items {
		lines[i] = Line{ProductID: it.Product.ID, Name: it.Product.Name, SKU: it.Product.SKU, Quantity: it.Quantity}
	}
	return lines, nil
}

func (m *module) Clear(ctx context.Context, id types.Identity) error {
	return m.service.Clear(ctx, id)
}

func (m *module) Service() *application.Service {
	return m.service
}
