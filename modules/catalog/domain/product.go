// Package domain contains catalog entities: products, price overrides and
// the rules around their prices.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	shareddomain "github.com/unitygrave/cardshop/modules/shared/domain"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Product is a sellable card listing. Its canonical price is expressed in
// its own base currency.
type Product struct {
	shareddomain.AggregateRoot

	id        types.ProductID
	name      string
	sku       string
	basePrice types.Money
	condition Condition
	createdAt time.Time
	updatedAt time.Time
}

func NewProduct(name, sku string, basePrice types.Money, condition Condition) (*Product, error) {
	name = strings.TrimSpace(name)
	sku = strings.TrimSpace(sku)
	if name == "" {
		return nil, ErrInvalidName
	}
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	if basePrice.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if !condition.IsValid() {
		return nil, ErrInvalidCondition
	}

	now := time.Now().UTC()
	return &Product{
		id:        types.NewProductID(),
		name:      name,
		sku:       sku,
		basePrice: basePrice,
		condition: condition,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute rebuilds a product from persistence.
func Reconstitute(id types.ProductID, name, sku string, basePrice types.Money, condition Condition, createdAt, updatedAt time.Time) *Product {
	return &Product{
		id:        id,
		name:      name,
		sku:       sku,
		basePrice: basePrice,
		condition: condition,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (p *Product) ID() types.ProductID      { return p.id }
func (p *Product) Name() string             { return p.name }
func (p *Product) SKU() string              { return p.sku }
func (p *Product) BasePrice() types.Money   { return p.basePrice }
func (p *Product) BaseCurrencyCode() string { return p.basePrice.Currency() }
func (p *Product) Condition() Condition     { return p.condition }
func (p *Product) CreatedAt() time.Time     { return p.createdAt }
func (p *Product) UpdatedAt() time.Time     { return p.updatedAt }

// ChangeBasePrice sets a new price in the product's own currency and
// records the change for price history.
func (p *Product) ChangeBasePrice(newAmount int64, actor string) error {
	if newAmount < 0 {
		return ErrInvalidPrice
	}
	old := p.basePrice.Amount()
	if old == newAmount {
		return nil
	}

	p.basePrice = types.MustNewMoney(newAmount, p.basePrice.Currency())
	p.updatedAt = time.Now().UTC()
	p.AddDomainEvent(contracts.PriceChangedEvent{
		BaseEvent:     events.NewBaseEvent(contracts.PriceChangedEventType, p.id.String()),
		ProductID:     p.id.String(),
		Currency:      p.basePrice.Currency(),
		OldPrice:      old,
		NewPrice:      newAmount,
		PercentChange: PercentChange(old, newAmount),
		Actor:         actor,
	})
	return nil
}

// PercentChange is (new-old)/old*100 rounded to two places. A change from
// zero has no meaningful percentage and reports zero.
func PercentChange(old, new int64) decimal.Decimal {
	if old == 0 {
		return decimal.Zero
	}
	delta := decimal.NewFromInt(new - old)
	return delta.Div(decimal.NewFromInt(old)).Mul(decimal.NewFromInt(100)).Round(2)
}

// Clone returns a copy without pending events.
func (p *Product) Clone() *Product {
	c := *p
	c.ClearDomainEvents()
	return &c
}
