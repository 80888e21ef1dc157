// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	StorageMemory  = "memory"
	StorageSpanner = "spanner"
)

// Config holds every setting the server and the CLI commands read.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPHost         string        `envconfig:"HTTP_HOST" default:""`
	HTTPPort         int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	HTTPIdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOrigins      []string      `envconfig:"CORS_ORIGINS" default:"*"`

	StorageDriver     string `envconfig:"STORAGE_DRIVER" default:"memory"`
	SpannerProjectID  string `envconfig:"SPANNER_PROJECT_ID" default:"local-project"`
	SpannerInstanceID string `envconfig:"SPANNER_INSTANCE_ID" default:"local-instance"`
	SpannerDatabaseID string `envconfig:"SPANNER_DATABASE_ID" default:"cardshop"`

	// Empty keeps audit records in memory.
	AuditDatabaseURL string `envconfig:"AUDIT_DATABASE_URL"`

	// Empty disables the search-index change feed.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_CATALOG_TOPIC" default:"catalog-changes"`

	BaseCurrency     string        `envconfig:"BASE_CURRENCY" default:"USD"`
	RateFeedURL      string        `envconfig:"RATE_FEED_URL"`
	RateSyncInterval time.Duration `envconfig:"RATE_SYNC_INTERVAL" default:"1h"`
	RatesMaxAge      time.Duration `envconfig:"RATES_MAX_AGE" default:"24h"`
	RateFeedTimeout  time.Duration `envconfig:"RATE_FEED_TIMEOUT" default:"10s"`

	PriceCacheTTL  time.Duration `envconfig:"PRICE_CACHE_TTL" default:"5m"`
	PriceCacheSize int           `envconfig:"PRICE_CACHE_SIZE" default:"10000"`

	SessionCartTTL  time.Duration `envconfig:"SESSION_CART_TTL" default:"24h"`
	SessionCartSize int           `envconfig:"SESSION_CART_SIZE" default:"100000"`

	CheckoutTimeout   time.Duration   `envconfig:"CHECKOUT_TIMEOUT" default:"10s"`
	TaxRate           decimal.Decimal `envconfig:"TAX_RATE" default:"0.08"`
	ShippingFlat      int64           `envconfig:"SHIPPING_FLAT" default:"500"`
	LowStockThreshold int             `envconfig:"LOW_STOCK_THRESHOLD" default:"5"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory, StorageSpanner:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if len(strings.TrimSpace(c.BaseCurrency)) != 3 {
		return fmt.Errorf("config: BASE_CURRENCY must be a 3-letter code, got %q", c.BaseCurrency)
	}
	if c.TaxRate.IsNegative() {
		return fmt.Errorf("config: TAX_RATE must not be negative")
	}
	if c.ShippingFlat < 0 {
		return fmt.Errorf("config: SHIPPING_FLAT must not be negative")
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("config: LOW_STOCK_THRESHOLD must not be negative")
	}
	if c.CheckoutTimeout <= 0 {
		return fmt.Errorf("config: CHECKOUT_TIMEOUT must be positive")
	}
	return nil
}

func (c Config) KafkaEnabled() bool {
	for _, b := range c.KafkaBrokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}
