package contracts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/unitygrave/cardshop/modules/shared/events"
)

const (
	PriceChangedEventType         events.EventType = "catalog.PriceChanged"
	PriceOverrideChangedEventType events.EventType = "catalog.PriceOverrideChanged"
	ExchangeRatesUpdatedEventType events.EventType = "catalog.ExchangeRatesUpdated"
)

// PriceChangedEvent records a committed change of a product's base price.
type PriceChangedEvent struct {
	events.BaseEvent
	ProductID     string          `json:"product_id"`
	Currency      string          `json:"currency"`
	OldPrice      int64           `json:"old_price"`
	NewPrice      int64           `json:"new_price"`
	PercentChange decimal.Decimal `json:"percent_change"`
	Actor         string          `json:"actor"`
}

type PriceOverrideChangedEvent struct {
	events.BaseEvent
	ProductID    string `json:"product_id"`
	CurrencyCode string `json:"currency_code"`
	Price        int64  `json:"price"`
	Active       bool   `json:"active"`
	Actor        string `json:"actor"`
}

type ExchangeRatesUpdatedEvent struct {
	events.BaseEvent
	BaseCurrency string                     `json:"base_currency"`
	Rates        map[string]decimal.Decimal `json:"rates"`
	FetchedAt    time.Time                  `json:"fetched_at"`
}
