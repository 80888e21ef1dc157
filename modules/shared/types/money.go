package types

import (
	"fmt"
	"strings"
)

// Money represents a monetary value with currency.
// Immutable value object - all operations return new instances.
type Money struct {
	amount   int64  // Amount in smallest currency unit (minor units)
	currency string // ISO 4217 currency code
}

func NewMoney(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	return Money{amount: amount, currency: strings.ToUpper(currency)}, nil
}

func MustNewMoney(amount int64, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{currency: strings.ToUpper(currency)}
}

func (m Money) Amount() int64             { return m.amount }
func (m Money) Currency() string          { return m.currency }
func (m Money) IsZero() bool              { return m.amount == 0 }
func (m Money) IsNegative() bool          { return m.amount < 0 }
func (m Money) IsPositive() bool          { return m.amount > 0 }
func (m Money) SameCurrency(o Money) bool { return m.currency == o.currency }

func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: cannot add %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrCurrencyMismatch, other.currency, m.currency)
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

func (m Money) Multiply(factor int64) Money {
	return Money{amount: m.amount * factor, currency: m.currency}
}

func (m Money) Equals(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.amount, m.currency)
}

// Sum adds amounts that share a currency. An empty slice sums to zero in currency.
func Sum(currency string, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
