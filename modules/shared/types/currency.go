package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// defaultDecimalPlaces lists currencies whose minor unit differs from cents.
var defaultDecimalPlaces = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
	"BHD": 3,
	"KWD": 3,
	"JOD": 3,
}

// DefaultDecimalPlaces returns the minor-unit exponent for an ISO 4217 code.
func DefaultDecimalPlaces(code string) int32 {
	if dp, ok := defaultDecimalPlaces[strings.ToUpper(code)]; ok {
		return dp
	}
	return 2
}

// Currency is a supported currency with its rate relative to the base currency.
// ExchangeRate is the number of units of this currency per one unit of the base.
type Currency struct {
	Code          string
	Name          string
	Symbol        string
	ExchangeRate  decimal.Decimal
	DecimalPlaces int32
	IsActive      bool
	IsBase        bool
	RateUpdatedAt time.Time
}

// NewCurrency builds an active currency with the default decimal places for code.
func NewCurrency(code, name, symbol string, rate decimal.Decimal) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return Currency{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	if !rate.IsPositive() {
		return Currency{}, fmt.Errorf("%w: %s", ErrInvalidRate, rate)
	}
	return Currency{
		Code:          code,
		Name:          name,
		Symbol:        symbol,
		ExchangeRate:  rate,
		DecimalPlaces: DefaultDecimalPlaces(code),
		IsActive:      true,
		RateUpdatedAt: time.Now().UTC(),
	}, nil
}

// NewBaseCurrency builds the base currency. Its rate is always 1.
func NewBaseCurrency(code, name, symbol string) (Currency, error) {
	c, err := NewCurrency(code, name, symbol, decimal.NewFromInt(1))
	if err != nil {
		return Currency{}, err
	}
	c.IsBase = true
	return c, nil
}

// Rate returns the effective rate; the base currency is pinned to 1.
func (c Currency) Rate() decimal.Decimal {
	if c.IsBase {
		return decimal.NewFromInt(1)
	}
	return c.ExchangeRate
}

// Convert re-expresses amount (in from's minor units) in to's minor units.
// The value goes through the base currency and is rounded once, half away
// from zero, at the target's minor-unit boundary.
func Convert(amount Money, from, to Currency) (Money, error) {
	if amount.Currency() != from.Code {
		return Money{}, fmt.Errorf("%w: amount in %s, source currency %s", ErrCurrencyMismatch, amount.Currency(), from.Code)
	}
	if from.Code == to.Code {
		return amount, nil
	}
	fromRate := from.Rate()
	if !fromRate.IsPositive() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidRate, from.Code)
	}
	toRate := to.Rate()
	if !toRate.IsPositive() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidRate, to.Code)
	}

	value := decimal.NewFromInt(amount.Amount()).Mul(toRate)
	if !from.IsBase {
		value = value.Div(fromRate)
	}
	value = value.Shift(to.DecimalPlaces - from.DecimalPlaces)

	return Money{amount: value.Round(0).IntPart(), currency: to.Code}, nil
}

// ConvertFromBase converts a base-currency amount into c.
func ConvertFromBase(amount Money, base, c Currency) (Money, error) {
	return Convert(amount, base, c)
}

// ConvertToBase converts an amount in c into the base currency.
// A zero or unset rate yields zero instead of an error, which is what
// reporting callers want.
func ConvertToBase(amount Money, c, base Currency) Money {
	if !c.IsBase && !c.ExchangeRate.IsPositive() {
		return Zero(base.Code)
	}
	converted, err := Convert(amount, c, base)
	if err != nil {
		return Zero(base.Code)
	}
	return converted
}

// Format renders amount with the currency symbol, thousands separators and
// fixed decimals. It never alters the stored amount.
func (c Currency) Format(amount Money) string {
	d := decimal.New(amount.Amount(), -c.DecimalPlaces)

	fixed := d.Abs().StringFixed(c.DecimalPlaces)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(c.Symbol)
	b.WriteString(groupThousands(intPart))
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// IsOutdated reports whether the rate is older than maxAge at now.
// The base currency is never outdated.
func (c Currency) IsOutdated(now time.Time, maxAge time.Duration) bool {
	if c.IsBase || maxAge <= 0 {
		return false
	}
	return c.RateUpdatedAt.IsZero() || now.Sub(c.RateUpdatedAt) > maxAge
}
