// Package catalog provides products, currencies and price resolution.
// This is the public API for the catalog bounded context.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/unitygrave/cardshop/modules/catalog/application/commands"
	"github.com/unitygrave/cardshop/modules/catalog/application/pricing"
	"github.com/unitygrave/cardshop/modules/catalog/application/queries"
	"github.com/unitygrave/cardshop/modules/catalog/application/ratesync"
	"github.com/unitygrave/cardshop/modules/catalog/domain"
	httphandler "github.com/unitygrave/cardshop/modules/catalog/infrastructure/http"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// ErrRateSyncDisabled is returned when no rate feed is configured.
var ErrRateSyncDisabled = errors.New("exchange rate feed not configured")

// ProductInfo is the catalog's view of a product for other modules.
type ProductInfo struct {
	ID        types.ProductID
	Name      string
	SKU       string
	BasePrice types.Money
}

// Observer receives catalog metrics.
type Observer interface {
	pricing.LookupObserver
	ratesync.Observer
}

// Module is the public API for the catalog bounded context.
type Module interface {
	RegisterRoutes(mux *http.ServeMux)

	FindProducts(ctx context.Context, ids []types.ProductID) (map[types.ProductID]ProductInfo, error)
	ResolvePrice(ctx context.Context, productID types.ProductID, currencyCode string) (types.Money, error)
	Currency(ctx context.Context, code string) (types.Currency, error)
	BaseCurrency(ctx context.Context) (types.Currency, error)
	ConvertToBase(ctx context.Context, amount types.Money) (types.Money, error)

	CreateProduct(ctx context.Context, cmd commands.CreateProductCommand) (types.ProductID, error)
	SaveCurrency(ctx context.Context, currency types.Currency) error

	SyncRates(ctx context.Context) (ratesync.Result, error)
	RunRateSync(ctx context.Context, interval time.Duration) error
}

// Config holds the module configuration.
type Config struct {
	Products       domain.ProductRepository
	Overrides      domain.PriceOverrideRepository
	Currencies     domain.CurrencyRepository
	TxScope        transaction.Scope
	EventPublisher events.Publisher
	// RateFeed is optional; without it rate sync is disabled.
	RateFeed    ratesync.Feed
	Observer    Observer
	Logger      *slog.Logger
	CacheSize   int
	CacheTTL    time.Duration
	RatesMaxAge time.Duration
}

type module struct {
	products      domain.ProductRepository
	currencies    domain.CurrencyRepository
	resolver      *pricing.Resolver
	syncer        *ratesync.Syncer
	createProduct *commands.CreateProductHandler
	handler       *httphandler.Handler
	logger        *slog.Logger
}

// New creates a new catalog module.
func New(cfg Config) Module {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "catalog")

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = pricing.DefaultOverrideTTL
	}
	opts := []pricing.Option{pricing.WithCache(cfg.CacheSize, ttl)}
	if cfg.RatesMaxAge > 0 {
		opts = append(opts, pricing.WithMaxRateAge(cfg.RatesMaxAge))
	}
	if cfg.Observer != nil {
		opts = append(opts, pricing.WithObserver(cfg.Observer))
	}
	resolver := pricing.NewResolver(cfg.Products, cfg.Overrides, cfg.Currencies, opts...)

	var syncer *ratesync.Syncer
	if cfg.RateFeed != nil {
		var observer ratesync.Observer
		if cfg.Observer != nil {
			observer = cfg.Observer
		}
		syncer = ratesync.NewSyncer(cfg.RateFeed, cfg.Currencies, cfg.TxScope, cfg.EventPublisher, observer, logger)
	}

	handler := httphandler.NewHandler(
		resolver,
		commands.NewUpsertPriceOverrideHandler(cfg.Products, cfg.Overrides, cfg.Currencies, cfg.TxScope, cfg.EventPublisher, resolver),
		commands.NewDeactivatePriceOverrideHandler(cfg.Overrides, cfg.TxScope, cfg.EventPublisher, resolver),
		commands.NewChangeBasePriceHandler(cfg.Products, cfg.TxScope, cfg.EventPublisher),
		queries.NewListProductsHandler(cfg.Products),
		queries.NewListOverridesHandler(cfg.Overrides),
		queries.NewListCurrenciesHandler(cfg.Currencies, resolver.MaxRateAge()),
	)

	return &module{
		products:      cfg.Products,
		currencies:    cfg.Currencies,
		resolver:      resolver,
		syncer:        syncer,
		createProduct: commands.NewCreateProductHandler(cfg.Products, cfg.Currencies, cfg.TxScope),
		handler:       handler,
		logger:        logger,
	}
}

func (m *module) RegisterRoutes(mux *http.ServeMux) {
	m.handler.RegisterRoutes(mux)
}

func (m *module) FindProducts(ctx context.Context, ids []types.ProductID) (map[types.ProductID]ProductInfo, error) {
	found, err := m.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	infos := make(map[types.ProductID]ProductInfo, len(found))
	for id, p := range found {
		infos[id] = ProductInfo{ID: p.ID(), Name: p.Name(), SKU: p.SKU(), BasePrice: p.BasePrice()}
	}
	return infos, nil
}

func (m *module) ResolvePrice(ctx context.Context, productID types.ProductID, currencyCode string) (types.Money, error) {
	return m.resolver.ResolvePriceByID(ctx, productID, currencyCode)
}

func (m *module) Currency(ctx context.Context, code string) (types.Currency, error) {
	return m.resolver.Currency(ctx, code)
}

func (m *module) BaseCurrency(ctx context.Context) (types.Currency, error) {
	return m.resolver.BaseCurrency(ctx)
}

func (m *module) ConvertToBase(ctx context.Context, amount types.Money) (types.Money, error) {
	return m.resolver.ConvertToBase(ctx, amount)
}

func (m *module) CreateProduct(ctx context.Context, cmd commands.CreateProductCommand) (types.ProductID, error) {
	return m.createProduct.Handle(ctx, cmd)
}

func (m *module) SaveCurrency(ctx context.Context, currency types.Currency) error {
	return m.currencies.Save(ctx, currency)
}

func (m *module) SyncRates(ctx context.Context) (ratesync.Result, error) {
	if m.syncer == nil {
		return ratesync.Result{}, ErrRateSyncDisabled
	}
	return m.syncer.Sync(ctx)
}

// RunRateSync blocks until ctx is done. Without a feed it only waits.
func (m *module) RunRateSync(ctx context.Context, interval time.Duration) error {
	if m.syncer == nil {
		m.logger.InfoContext(ctx, "exchange rate sync disabled")
		<-ctx.Done()
		return nil
	}
	return m.syncer.Run(ctx, interval)
}
