package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrRefundExceedsTotal   = errors.New("refund exceeds refundable balance")
	ErrOrderAlreadyRefunded = errors.New("order is already fully refunded")
	ErrInvalidRefundAmount  = errors.New("refund amount must be positive")
	ErrInvalidPaymentMethod = errors.New("payment method must be cod, credit_card or paypal")
	ErrInvalidContact       = errors.New("contact name and email are required")
	ErrInvalidAddress       = errors.New("shipping address is incomplete")
	ErrInvalidStatus        = errors.New("unknown order status")
	ErrInvalidPricingInput  = errors.New("tax rate and shipping fee must not be negative")

	// ErrPersistenceFailure wraps every unexpected fault raised while placing
	// or transitioning an order. Callers see it as a generic failure.
	ErrPersistenceFailure = errors.New("order persistence failure")
)

// InvalidTransitionError names the rejected move.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
