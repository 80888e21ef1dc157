package domain

import (
	"strings"
	"time"

	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// PriceOverride pins a product's price in one currency, bypassing conversion.
// There is at most one per (product, currency); whether it applies is
// decided at read time from IsActive and the optional window.
type PriceOverride struct {
	ProductID      types.ProductID
	CurrencyCode   string
	Price          int64
	IsActive       bool
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
	Note           string
	UpdatedAt      time.Time
}

func NewPriceOverride(productID types.ProductID, currencyCode string, price int64, from, until *time.Time, note string) (PriceOverride, error) {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if len(code) != 3 {
		return PriceOverride{}, types.ErrInvalidCurrency
	}
	if price < 0 {
		return PriceOverride{}, ErrInvalidPrice
	}
	if from != nil && until != nil && until.Before(*from) {
		return PriceOverride{}, ErrInvalidWindow
	}
	return PriceOverride{
		ProductID:      productID,
		CurrencyCode:   code,
		Price:          price,
		IsActive:       true,
		EffectiveFrom:  from,
		EffectiveUntil: until,
		Note:           note,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// EffectiveAt reports whether the override applies at t. The window is
// inclusive of its start and exclusive of its end.
func (o PriceOverride) EffectiveAt(t time.Time) bool {
	if !o.IsActive {
		return false
	}
	if o.EffectiveFrom != nil && t.Before(*o.EffectiveFrom) {
		return false
	}
	if o.EffectiveUntil != nil && !t.Before(*o.EffectiveUntil) {
		return false
	}
	return true
}

func (o PriceOverride) Money() types.Money {
	return types.MustNewMoney(o.Price, o.CurrencyCode)
}

// ChangedEvent describes the override's current state for subscribers.
func (o PriceOverride) ChangedEvent(actor string) contracts.PriceOverrideChangedEvent {
	return contracts.PriceOverrideChangedEvent{
		BaseEvent:    events.NewBaseEvent(contracts.PriceOverrideChangedEventType, o.ProductID.String()),
		ProductID:    o.ProductID.String(),
		CurrencyCode: o.CurrencyCode,
		Price:        o.Price,
		Active:       o.IsActive,
		Actor:        actor,
	}
}
