// Package app assembles the modules into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gcspanner "cloud.google.com/go/spanner"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/unitygrave/cardshop/internal/platform/config"
	"github.com/unitygrave/cardshop/internal/platform/eventbus"
	"github.com/unitygrave/cardshop/internal/platform/httpserver"
	"github.com/unitygrave/cardshop/internal/platform/kafka"
	"github.com/unitygrave/cardshop/internal/platform/metrics"
	"github.com/unitygrave/cardshop/internal/platform/postgres"
	"github.com/unitygrave/cardshop/internal/platform/spanner"
	platformtx "github.com/unitygrave/cardshop/internal/platform/transaction"
	"github.com/unitygrave/cardshop/modules/audit"
	auditdomain "github.com/unitygrave/cardshop/modules/audit/domain"
	auditpersistence "github.com/unitygrave/cardshop/modules/audit/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/cart"
	cartdomain "github.com/unitygrave/cardshop/modules/cart/domain"
	cartpersistence "github.com/unitygrave/cardshop/modules/cart/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/catalog"
	"github.com/unitygrave/cardshop/modules/catalog/application/ratesync"
	catalogdomain "github.com/unitygrave/cardshop/modules/catalog/domain"
	catalogpersistence "github.com/unitygrave/cardshop/modules/catalog/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/catalog/infrastructure/ratefeed"
	"github.com/unitygrave/cardshop/modules/inventory"
	inventorydomain "github.com/unitygrave/cardshop/modules/inventory/domain"
	inventorypersistence "github.com/unitygrave/cardshop/modules/inventory/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/notifications"
	"github.com/unitygrave/cardshop/modules/orders"
	orderdomain "github.com/unitygrave/cardshop/modules/orders/domain"
	orderpersistence "github.com/unitygrave/cardshop/modules/orders/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// maxEventDepth bounds handlers that publish further events.
const maxEventDepth = 8

// catalogChangeEvents are forwarded to the search-index topic.
var catalogChangeEvents = []events.EventType{
	contracts.PriceChangedEventType,
	contracts.PriceOverrideChangedEventType,
	contracts.ExchangeRatesUpdatedEventType,
	contracts.StockChangedEventType,
}

// App is the assembled application.
type App struct {
	Catalog   catalog.Module
	Cart      cart.Module
	Inventory inventory.Module
	Orders    orders.Module
	Audit     audit.Module
	Metrics   *metrics.Metrics
	Handler   http.Handler

	cfg     config.Config
	logger  *slog.Logger
	closers []func()
}

type repositories struct {
	products   catalogdomain.ProductRepository
	overrides  catalogdomain.PriceOverrideRepository
	currencies catalogdomain.CurrencyRepository
	carts      cartdomain.Store
	stock      inventorydomain.Repository
	orders     orderdomain.OrderRepository
	txScope    transaction.Scope
	readScope  transaction.Scope
}

// Build wires every module from cfg. Close releases what Build opened.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger, Metrics: metrics.New()}

	repos, err := a.storage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry := eventbus.NewEventHandlerRegistry(logger)
	bus := eventbus.New(registry, logger, maxEventDepth).WithFailureObserver(a.Metrics)

	auditStore, err := a.auditStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.forwardCatalogChanges(registry); err != nil {
		a.Close()
		return nil, err
	}

	var feed ratesync.Feed
	if cfg.RateFeedURL != "" {
		feed = ratefeed.NewHTTPFeed(cfg.RateFeedURL, cfg.RateFeedTimeout, ratefeed.DefaultRetryConfig())
	}

	a.Catalog = catalog.New(catalog.Config{
		Products:       repos.products,
		Overrides:      repos.overrides,
		Currencies:     repos.currencies,
		TxScope:        repos.txScope,
		EventPublisher: bus,
		RateFeed:       feed,
		Observer:       a.Metrics,
		Logger:         logger,
		CacheSize:      cfg.PriceCacheSize,
		CacheTTL:       cfg.PriceCacheTTL,
		RatesMaxAge:    cfg.RatesMaxAge,
	})
	a.Cart = cart.New(cart.Config{
		PersistedStore: repos.carts,
		SessionStore:   cartpersistence.NewSessionStore(cfg.SessionCartSize, cfg.SessionCartTTL),
		Catalog:        cartCatalog{catalog: a.Catalog},
		TxScope:        repos.txScope,
		ReadScope:      repos.readScope,
		BaseCurrency:   strings.ToUpper(cfg.BaseCurrency),
	})
	a.Inventory = inventory.New(inventory.Config{
		Repository:        repos.stock,
		TxScope:           repos.txScope,
		EventPublisher:    bus,
		LowStockThreshold: cfg.LowStockThreshold,
		Logger:            logger,
	})
	a.Orders = orders.New(orders.Config{
		Repository:      repos.orders,
		Cart:            orderCart{cart: a.Cart},
		Pricing:         a.Catalog,
		Inventory:       orderInventory{inventory: a.Inventory},
		TxScope:         repos.txScope,
		EventPublisher:  bus,
		Observer:        a.Metrics,
		Logger:          logger,
		TaxRate:         cfg.TaxRate,
		ShippingFlat:    cfg.ShippingFlat,
		CheckoutTimeout: cfg.CheckoutTimeout,
	})
	a.Audit, err = audit.New(audit.Config{Store: auditStore, EventSubscriber: registry, Logger: logger})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("audit module: %w", err)
	}
	_ = notifications.New(notifications.Config{EventSubscriber: registry, Logger: logger})

	for eventType, n := range registry.Subscriptions() {
		logger.Debug("event subscription", slog.String("event_type", eventType.String()), slog.Int("handlers", n))
	}

	if err := a.seedBaseCurrency(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Handler = httpserver.Middleware(
		a.Metrics.Instrument(a.router()),
		httpserver.Recovery(logger),
		httpserver.Logging(logger),
		httpserver.CORS(cfg.CORSOrigins),
	)
	return a, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ServerConfig maps the HTTP settings.
func (a *App) ServerConfig() httpserver.Config {
	return httpserver.Config{
		Host:         a.cfg.HTTPHost,
		Port:         a.cfg.HTTPPort,
		ReadTimeout:  a.cfg.HTTPReadTimeout,
		WriteTimeout: a.cfg.HTTPWriteTimeout,
		IdleTimeout:  a.cfg.HTTPIdleTimeout,
	}
}

func (a *App) storage(ctx context.Context) (repositories, error) {
	switch a.cfg.StorageDriver {
	case config.StorageSpanner:
		spannerCfg := spanner.Config{
			ProjectID:  a.cfg.SpannerProjectID,
			InstanceID: a.cfg.SpannerInstanceID,
			DatabaseID: a.cfg.SpannerDatabaseID,
		}
		client, err := spanner.NewClient(ctx, spannerCfg)
		if err != nil {
			return repositories{}, fmt.Errorf("spanner client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("connected to spanner", slog.String("dsn", spannerCfg.DSN()))
		return spannerRepositories(client), nil
	default:
		return repositories{
			products:   catalogpersistence.NewInMemoryProductRepository(),
			overrides:  catalogpersistence.NewInMemoryPriceOverrideRepository(),
			currencies: catalogpersistence.NewInMemoryCurrencyRepository(),
			carts:      cartpersistence.NewInMemoryStore(),
			stock:      inventorypersistence.NewInMemoryRepository(),
			orders:     orderpersistence.NewInMemoryRepository(),
			txScope:    platformtx.NewTracedScope(platformtx.NewMemoryScope(), "memory"),
		}, nil
	}
}

func spannerRepositories(client *gcspanner.Client) repositories {
	return repositories{
		products:   catalogpersistence.NewSpannerProductRepository(client),
		overrides:  catalogpersistence.NewSpannerPriceOverrideRepository(client),
		currencies: catalogpersistence.NewSpannerCurrencyRepository(client),
		carts:      cartpersistence.NewSpannerStore(client),
		stock:      inventorypersistence.NewSpannerRepository(client),
		orders:     orderpersistence.NewSpannerRepository(client),
		txScope:    platformtx.NewTracedScope(spanner.NewReadWriteTransactionScope(client), "spanner"),
		readScope:  platformtx.NewTracedScope(spanner.NewReadOnlyTransactionScope(client), "spanner.read"),
	}
}

func (a *App) auditStore(ctx context.Context) (auditdomain.Store, error) {
	if a.cfg.AuditDatabaseURL == "" {
		return auditpersistence.NewInMemoryStore(), nil
	}
	pool, err := postgres.NewPool(ctx, a.cfg.AuditDatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("audit database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	return auditpersistence.NewPostgresStore(pool), nil
}

func (a *App) forwardCatalogChanges(sub events.Subscriber) error {
	client := kafka.NewClient(a.cfg.KafkaBrokers)
	if !client.Enabled() {
		return nil
	}
	writer, err := client.NewWriter(a.cfg.KafkaTopic)
	if err != nil {
		return fmt.Errorf("kafka writer: %w", err)
	}
	a.closers = append(a.closers, func() { closeWriter(writer, a.logger) })

	forwarder := kafka.NewForwarder(writer)
	for _, t := range catalogChangeEvents {
		if err := sub.Subscribe(t, forwarder); err != nil {
			return err
		}
	}
	a.logger.Info("forwarding catalog changes", slog.String("topic", a.cfg.KafkaTopic))
	return nil
}

func closeWriter(w *kafkago.Writer, logger *slog.Logger) {
	if err := w.Close(); err != nil {
		logger.Warn("closing kafka writer", slog.Any("error", err))
	}
}

var currencyNames = map[string][2]string{
	"USD": {"US Dollar", "$"},
	"EUR": {"Euro", "€"},
	"GBP": {"British Pound", "£"},
	"JPY": {"Japanese Yen", "¥"},
	"CAD": {"Canadian Dollar", "CA$"},
	"AUD": {"Australian Dollar", "A$"},
}

// seedBaseCurrency creates the configured base currency on first start.
func (a *App) seedBaseCurrency(ctx context.Context) error {
	_, err := a.Catalog.BaseCurrency(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrNoActiveBaseCurrency) {
		return fmt.Errorf("reading base currency: %w", err)
	}

	code := strings.ToUpper(strings.TrimSpace(a.cfg.BaseCurrency))
	name, symbol := code, code
	if n, ok := currencyNames[code]; ok {
		name, symbol = n[0], n[1]
	}
	base, err := types.NewBaseCurrency(code, name, symbol)
	if err != nil {
		return fmt.Errorf("base currency %q: %w", code, err)
	}
	if err := a.Catalog.SaveCurrency(ctx, base); err != nil {
		return fmt.Errorf("seeding base currency: %w", err)
	}
	a.logger.Info("seeded base currency", slog.String("code", code))
	return nil
}

func (a *App) router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", a.Metrics.Handler())

	a.Catalog.RegisterRoutes(mux)
	a.Cart.RegisterRoutes(mux)
	a.Inventory.RegisterRoutes(mux)
	a.Orders.RegisterRoutes(mux)
	a.Audit.RegisterRoutes(mux)

	return mux
}
