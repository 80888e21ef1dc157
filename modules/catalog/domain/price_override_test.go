package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

func TestPriceOverride_EffectiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name   string
		active bool
		from   *time.Time
		until  *time.Time
		want   bool
	}{
		{name: "open window", active: true, want: true},
		{name: "inactive", active: false, want: false},
		{name: "inside window", active: true, from: &before, until: &after, want: true},
		{name: "not started", active: true, from: &after, want: false},
		{name: "starts now", active: true, from: &now, want: true},
		{name: "ended", active: true, until: &before, want: false},
		{name: "ends now", active: true, until: &now, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := domain.PriceOverride{IsActive: tt.active, EffectiveFrom: tt.from, EffectiveUntil: tt.until}
			assert.Equal(t, tt.want, o.EffectiveAt(now))
		})
	}
}

func TestNewPriceOverride_Validation(t *testing.T) {
	id := types.NewProductID()
	from := time.Now()
	until := from.Add(-time.Minute)

	_, err := domain.NewPriceOverride(id, "EURO", 100, nil, nil, "")
	assert.ErrorIs(t, err, types.ErrInvalidCurrency)

	_, err = domain.NewPriceOverride(id, "EUR", -1, nil, nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = domain.NewPriceOverride(id, "EUR", 100, &from, &until, "")
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	o, err := domain.NewPriceOverride(id, "eur", 100, nil, nil, "promo")
	require.NoError(t, err)
	assert.Equal(t, "EUR", o.CurrencyCode)
	assert.True(t, o.IsActive)
}

func TestProduct_ChangeBasePrice(t *testing.T) {
	p, err := domain.NewProduct("Black Lotus", "LEA-232", types.MustNewMoney(1000, "USD"), domain.ConditionNearMint)
	require.NoError(t, err)

	require.NoError(t, p.ChangeBasePrice(1250, "admin"))
	assert.Equal(t, int64(1250), p.BasePrice().Amount())

	evts := p.PopDomainEvents()
	require.Len(t, evts, 1)
	changed, ok := evts[0].(contracts.PriceChangedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(1000), changed.OldPrice)
	assert.Equal(t, int64(1250), changed.NewPrice)
	assert.True(t, decimal.NewFromInt(25).Equal(changed.PercentChange))

	require.NoError(t, p.ChangeBasePrice(1250, "admin"))
	assert.Empty(t, p.DomainEvents(), "unchanged price records nothing")

	assert.ErrorIs(t, p.ChangeBasePrice(-5, "admin"), domain.ErrInvalidPrice)
}

func TestPercentChange(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(domain.PercentChange(0, 500)))
	assert.Equal(t, "-33.33", domain.PercentChange(300, 200).String())
}

func TestNewProduct_Validation(t *testing.T) {
	price := types.MustNewMoney(100, "USD")

	_, err := domain.NewProduct(" ", "SKU", price, domain.ConditionMint)
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	_, err = domain.NewProduct("Card", "", price, domain.ConditionMint)
	assert.ErrorIs(t, err, domain.ErrInvalidSKU)
	_, err = domain.NewProduct("Card", "SKU", types.MustNewMoney(-1, "USD"), domain.ConditionMint)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	_, err = domain.NewProduct("Card", "SKU", price, domain.Condition("shiny"))
	assert.ErrorIs(t, err, domain.ErrInvalidCondition)
}
