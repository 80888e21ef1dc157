package types_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitygrave/cardshop/modules/shared/types"
)

func mustCurrency(t *testing.T, code, symbol, rate string) types.Currency {
	t.Helper()
	c, err := types.NewCurrency(code, code, symbol, decimal.RequireFromString(rate))
	require.NoError(t, err)
	return c
}

func mustBase(t *testing.T) types.Currency {
	t.Helper()
	c, err := types.NewBaseCurrency("USD", "US Dollar", "$")
	require.NoError(t, err)
	return c
}

func TestConvertFromBase(t *testing.T) {
	usd := mustBase(t)

	tests := []struct {
		name   string
		target types.Currency
		amount int64
		want   int64
	}{
		{"same currency", usd, 1000, 1000},
		{"euro", mustCurrency(t, "EUR", "€", "0.90"), 1000, 900},
		{"fractional rate", mustCurrency(t, "EUR", "€", "0.905"), 1000, 905},
		{"half away from zero", mustCurrency(t, "GBP", "£", "0.5"), 1001, 501},
		{"zero decimal target", mustCurrency(t, "JPY", "¥", "150"), 1000, 1500},
		{"zero decimal rounding", mustCurrency(t, "JPY", "¥", "150"), 1001, 1502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ConvertFromBase(types.MustNewMoney(tt.amount, "USD"), usd, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount())
			assert.Equal(t, tt.target.Code, got.Currency())
		})
	}
}

func TestConvert_NegativeRoundsAwayFromZero(t *testing.T) {
	usd := mustBase(t)
	gbp := mustCurrency(t, "GBP", "£", "0.5")

	got, err := types.ConvertFromBase(types.MustNewMoney(-1001, "USD"), usd, gbp)
	require.NoError(t, err)
	assert.Equal(t, int64(-501), got.Amount())
}

func TestConvert_CurrencyMismatch(t *testing.T) {
	usd := mustBase(t)
	eur := mustCurrency(t, "EUR", "€", "0.9")

	_, err := types.Convert(types.MustNewMoney(100, "EUR"), usd, eur)
	assert.ErrorIs(t, err, types.ErrCurrencyMismatch)
}

func TestConvert_CrossRateThroughBase(t *testing.T) {
	eur := mustCurrency(t, "EUR", "€", "0.8")
	gbp := mustCurrency(t, "GBP", "£", "0.6")

	// 1000 EUR cents = 1250 USD cents = 750 GBP pence
	got, err := types.Convert(types.MustNewMoney(1000, "EUR"), eur, gbp)
	require.NoError(t, err)
	assert.Equal(t, int64(750), got.Amount())
}

func TestConvertToBase_ZeroRate(t *testing.T) {
	usd := mustBase(t)
	broken := types.Currency{Code: "XXX", DecimalPlaces: 2, IsActive: true}

	got := types.ConvertToBase(types.MustNewMoney(12345, "XXX"), broken, usd)
	assert.True(t, got.IsZero())
	assert.Equal(t, "USD", got.Currency())
}

func TestConversionRoundTrip(t *testing.T) {
	usd := mustBase(t)
	rates := []string{"0.90", "0.7731", "1.3579", "7.2", "150.25", "1"}
	amounts := []int64{0, 1, 99, 1000, 123457, 99999999}

	for _, rate := range rates {
		for _, code := range []string{"EUR", "JPY"} {
			c := mustCurrency(t, code, "", rate)
			for _, amount := range amounts {
				x := types.MustNewMoney(amount, "USD")
				there, err := types.ConvertFromBase(x, usd, c)
				require.NoError(t, err)
				back := types.ConvertToBase(there, c, usd)

				tolerance := int64(1)
				if c.DecimalPlaces < usd.DecimalPlaces {
					// one yen is worth more than a cent at these rates
					tolerance = decimal.NewFromInt(100).Div(c.ExchangeRate).Ceil().IntPart()
				}
				diff := back.Amount() - amount
				if diff < 0 {
					diff = -diff
				}
				assert.LessOrEqualf(t, diff, tolerance, "rate %s code %s amount %d -> %d -> %d", rate, code, amount, there.Amount(), back.Amount())
			}
		}
	}
}

func TestCurrency_Format(t *testing.T) {
	usd := mustBase(t)
	jpy := mustCurrency(t, "JPY", "¥", "150")
	kwd := mustCurrency(t, "KWD", "KD ", "0.31")

	assert.Equal(t, "$0.00", usd.Format(types.MustNewMoney(0, "USD")))
	assert.Equal(t, "$9.00", usd.Format(types.MustNewMoney(900, "USD")))
	assert.Equal(t, "$1,234,567.89", usd.Format(types.MustNewMoney(123456789, "USD")))
	assert.Equal(t, "-$12.05", usd.Format(types.MustNewMoney(-1205, "USD")))
	assert.Equal(t, "¥1,500", jpy.Format(types.MustNewMoney(1500, "JPY")))
	assert.Equal(t, "KD 1.250", kwd.Format(types.MustNewMoney(1250, "KWD")))
}

func TestCurrency_BaseRateIsPinned(t *testing.T) {
	usd := mustBase(t)
	usd.ExchangeRate = decimal.RequireFromString("3.5")

	assert.True(t, usd.Rate().Equal(decimal.NewFromInt(1)))
}

func TestCurrency_IsOutdated(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eur := mustCurrency(t, "EUR", "€", "0.9")

	eur.RateUpdatedAt = now.Add(-2 * time.Hour)
	assert.False(t, eur.IsOutdated(now, 24*time.Hour))

	eur.RateUpdatedAt = now.Add(-48 * time.Hour)
	assert.True(t, eur.IsOutdated(now, 24*time.Hour))

	usd := mustBase(t)
	usd.RateUpdatedAt = time.Time{}
	assert.False(t, usd.IsOutdated(now, time.Hour))
}

func TestNewCurrency_Validation(t *testing.T) {
	_, err := types.NewCurrency("EURO", "Euro", "€", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, types.ErrInvalidCurrency)

	_, err = types.NewCurrency("EUR", "Euro", "€", decimal.Zero)
	assert.ErrorIs(t, err, types.ErrInvalidRate)

	jpy, err := types.NewCurrency("jpy", "Yen", "¥", decimal.NewFromInt(150))
	require.NoError(t, err)
	assert.Equal(t, "JPY", jpy.Code)
	assert.Equal(t, int32(0), jpy.DecimalPlaces)
}
