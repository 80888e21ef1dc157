package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common validation failures.
// Define errors in the types package where the validated types live.
var (
	ErrInvalidID            = errors.New("invalid identifier format")
	ErrInvalidCurrency      = errors.New("currency must be 3-letter ISO code")
	ErrCurrencyMismatch     = errors.New("currency mismatch")
	ErrInvalidRate          = errors.New("exchange rate must be positive")
	ErrCurrencyNotFound     = errors.New("currency not found")
	ErrMissingIdentity      = errors.New("caller has neither user nor session identity")
	ErrNoActiveBaseCurrency = errors.New("no active base currency configured")
)

// CurrencyNotFoundError carries the code that failed to resolve.
type CurrencyNotFoundError struct {
	Code string
}

func (e *CurrencyNotFoundError) Error() string {
	return fmt.Sprintf("currency not found: %s", e.Code)
}

func (e *CurrencyNotFoundError) Is(target error) bool {
	return target == ErrCurrencyNotFound
}

// ErrInsufficientStock matches every InsufficientStockError.
var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError reports the first line that cannot be filled.
type InsufficientStockError struct {
	ProductID ProductID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
