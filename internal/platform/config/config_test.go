package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitygrave/cardshop/internal/platform/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, config.StorageMemory, cfg.StorageDriver)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, 5*time.Minute, cfg.PriceCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.CheckoutTimeout)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.08")))
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("RATES_MAX_AGE", "6h")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, 6*time.Hour, cfg.RatesMaxAge)
}

func TestLoad_RejectsUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := config.Load()
	assert.Error(t, err)
}
