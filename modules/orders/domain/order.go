// Package domain contains business entities and rules for orders.
package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	shareddomain "github.com/unitygrave/cardshop/modules/shared/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Contact is who to reach about the order.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Address is where the order ships.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Totals are the money figures of an order in one currency.
type Totals struct {
	Subtotal types.Money
	Tax      types.Money
	Shipping types.Money
	Total    types.Money
}

// ComputeTotals derives tax and total from a subtotal. Tax is rounded once,
// half away from zero. No component may be negative.
func ComputeTotals(subtotal types.Money, taxRate decimal.Decimal, shipping types.Money) (Totals, error) {
	if subtotal.Amount() < 0 || taxRate.IsNegative() || shipping.Amount() < 0 {
		return Totals{}, ErrInvalidPricingInput
	}
	tax := types.MustNewMoney(decimal.NewFromInt(subtotal.Amount()).Mul(taxRate).Round(0).IntPart(), subtotal.Currency())
	total, err := types.Sum(subtotal.Currency(), subtotal, tax, shipping)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Subtotal: subtotal, Tax: tax, Shipping: shipping, Total: total}, nil
}

// RateSnapshot freezes the exchange rate used at checkout.
type RateSnapshot struct {
	BaseCurrency    string
	DisplayCurrency string
	Rate            decimal.Decimal
}

// OrderItem is a frozen copy of a cart line at placement time.
type OrderItem struct {
	ProductID        types.ProductID
	ProductName      string
	SKU              string
	Quantity         int
	UnitPriceDisplay types.Money
	UnitPriceBase    types.Money
	LineTotalDisplay types.Money
	LineTotalBase    types.Money
}

// Refund is one immutable refund record, in the base currency.
type Refund struct {
	Amount    types.Money
	Reason    string
	Actor     string
	CreatedAt time.Time
}

// Note is an append-only remark on the order.
type Note struct {
	Text      string
	Actor     string
	CreatedAt time.Time
}

// Order is the aggregate root for the order bounded context.
type Order struct {
	shareddomain.AggregateRoot

	id            types.OrderID
	number        string
	userID        types.UserID
	sessionID     string
	status        Status
	paymentStatus PaymentStatus
	paymentMethod PaymentMethod
	contact       Contact
	shipping      Address
	instructions  string
	base          Totals
	display       Totals
	rate          RateSnapshot
	items         []OrderItem
	refunds       []Refund
	notes         []Note
	createdAt     time.Time
	updatedAt     time.Time
	shippedAt     *time.Time
	deliveredAt   *time.Time
	cancelledAt   *time.Time
	refundedAt    *time.Time
}

// PlaceParams carries everything needed to create an order.
type PlaceParams struct {
	Number        string
	Identity      types.Identity
	PaymentMethod PaymentMethod
	Contact       Contact
	Shipping      Address
	Instructions  string
	Items         []OrderItem
	Base          Totals
	Display       Totals
	Rate          RateSnapshot
	Now           time.Time
}

// ValidateCheckout checks the shopper-supplied details of a placement.
func ValidateCheckout(contact Contact, shipping Address) error {
	if strings.TrimSpace(contact.Name) == "" || !strings.Contains(contact.Email, "@") {
		return ErrInvalidContact
	}
	if strings.TrimSpace(shipping.Line1) == "" || strings.TrimSpace(shipping.City) == "" || strings.TrimSpace(shipping.Country) == "" {
		return ErrInvalidAddress
	}
	return nil
}

// NewOrder creates a pending order and records OrderPlaced.
func NewOrder(p PlaceParams) (*Order, error) {
	if len(p.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if _, err := ParsePaymentMethod(string(p.PaymentMethod)); err != nil {
		return nil, err
	}
	if err := ValidateCheckout(p.Contact, p.Shipping); err != nil {
		return nil, err
	}

	now := p.Now.UTC()
	o := &Order{
		id:            types.NewOrderID(),
		number:        p.Number,
		userID:        p.Identity.UserID,
		sessionID:     p.Identity.SessionID,
		status:        StatusPending,
		paymentStatus: PaymentPending,
		paymentMethod: p.PaymentMethod,
		contact:       p.Contact,
		shipping:      p.Shipping,
		instructions:  strings.TrimSpace(p.Instructions),
		base:          p.Base,
		display:       p.Display,
		rate:          p.Rate,
		items:         slices.Clone(p.Items),
		createdAt:     now,
		updatedAt:     now,
	}
	o.AddDomainEvent(newOrderPlacedEvent(o))
	return o, nil
}

// ReconstituteParams mirrors the persisted state of an order.
type ReconstituteParams struct {
	ID            types.OrderID
	Number        string
	UserID        types.UserID
	SessionID     string
	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	Contact       Contact
	Shipping      Address
	Instructions  string
	Base          Totals
	Display       Totals
	Rate          RateSnapshot
	Items         []OrderItem
	Refunds       []Refund
	Notes         []Note
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	RefundedAt    *time.Time
}

// Reconstitute rebuilds an order from persistence.
func Reconstitute(p ReconstituteParams) *Order {
	return &Order{
		id:            p.ID,
		number:        p.Number,
		userID:        p.UserID,
		sessionID:     p.SessionID,
		status:        p.Status,
		paymentStatus: p.PaymentStatus,
		paymentMethod: p.PaymentMethod,
		contact:       p.Contact,
		shipping:      p.Shipping,
		instructions:  p.Instructions,
		base:          p.Base,
		display:       p.Display,
		rate:          p.Rate,
		items:         p.Items,
		refunds:       p.Refunds,
		notes:         p.Notes,
		createdAt:     p.CreatedAt,
		updatedAt:     p.UpdatedAt,
		shippedAt:     p.ShippedAt,
		deliveredAt:   p.DeliveredAt,
		cancelledAt:   p.CancelledAt,
		refundedAt:    p.RefundedAt,
	}
}

// Getters

func (o *Order) ID() types.OrderID            { return o.id }
func (o *Order) Number() string               { return o.number }
func (o *Order) UserID() types.UserID         { return o.userID }
func (o *Order) SessionID() string            { return o.sessionID }
func (o *Order) Status() Status               { return o.status }
func (o *Order) PaymentStatus() PaymentStatus { return o.paymentStatus }
func (o *Order) PaymentMethod() PaymentMethod { return o.paymentMethod }
func (o *Order) Contact() Contact             { return o.contact }
func (o *Order) ShippingAddress() Address     { return o.shipping }
func (o *Order) Instructions() string         { return o.instructions }
func (o *Order) BaseTotals() Totals           { return o.base }
func (o *Order) DisplayTotals() Totals        { return o.display }
func (o *Order) Rate() RateSnapshot           { return o.rate }
func (o *Order) Items() []OrderItem           { return slices.Clone(o.items) }
func (o *Order) Refunds() []Refund            { return slices.Clone(o.refunds) }
func (o *Order) Notes() []Note                { return slices.Clone(o.notes) }
func (o *Order) CreatedAt() time.Time         { return o.createdAt }
func (o *Order) UpdatedAt() time.Time         { return o.updatedAt }
func (o *Order) ShippedAt() *time.Time        { return o.shippedAt }
func (o *Order) DeliveredAt() *time.Time      { return o.deliveredAt }
func (o *Order) CancelledAt() *time.Time      { return o.cancelledAt }
func (o *Order) RefundedAt() *time.Time       { return o.refundedAt }

// RefundedTotal is the sum of all refunds so far.
func (o *Order) RefundedTotal() types.Money {
	total := types.Zero(o.base.Total.Currency())
	for _, r := range o.refunds {
		total, _ = total.Add(r.Amount)
	}
	return total
}

// RefundableBalance is what may still be refunded.
func (o *Order) RefundableBalance() types.Money {
	remaining, _ := o.base.Total.Subtract(o.RefundedTotal())
	return remaining
}

// Business methods

// Cancel moves a pending or processing order to cancelled. The caller
// restores the items' stock in the same unit of work.
func (o *Order) Cancel(reason, actor string, now time.Time) error {
	if !o.status.cancellable() {
		return &InvalidTransitionError{From: o.status, To: StatusCancelled}
	}
	now = now.UTC()
	o.status = StatusCancelled
	o.paymentStatus = PaymentCancelled
	o.cancelledAt = &now
	o.updatedAt = now
	o.appendNote("Cancelled: "+reasonOrDefault(reason), actor, now)
	o.AddDomainEvent(newOrderCancelledEvent(o, reason, actor))
	return nil
}

// Refund records a refund in the base currency and reports whether it
// completed the order total. Only a completing refund moves the order to
// refunded; a partial one returns it to processing. An order with nothing
// left to refund, such as a free one, is completed by a zero refund.
func (o *Order) Refund(amount types.Money, reason, actor string, now time.Time) (bool, error) {
	if o.status == StatusRefunded {
		return false, ErrOrderAlreadyRefunded
	}
	if !o.status.refundable() {
		return false, &InvalidTransitionError{From: o.status, To: StatusRefunded}
	}
	if amount.Currency() != o.base.Total.Currency() {
		return false, types.ErrCurrencyMismatch
	}
	if amount.IsNegative() || (amount.IsZero() && !o.RefundableBalance().IsZero()) {
		return false, ErrInvalidRefundAmount
	}
	if amount.Amount() > o.RefundableBalance().Amount() {
		return false, ErrRefundExceedsTotal
	}

	now = now.UTC()
	o.refunds = append(o.refunds, Refund{Amount: amount, Reason: reason, Actor: actor, CreatedAt: now})
	full := o.RefundableBalance().IsZero()
	if full {
		o.status = StatusRefunded
		o.paymentStatus = PaymentRefunded
		o.refundedAt = &now
	} else {
		o.status = StatusProcessing
		o.paymentStatus = PaymentPartiallyRefunded
	}
	o.updatedAt = now
	o.appendNote("Refunded "+amount.String()+": "+reasonOrDefault(reason), actor, now)
	o.AddDomainEvent(newOrderRefundedEvent(o, amount, full, reason, actor))
	return full, nil
}

// UpdateStatus moves the order between fulfilment states. Cancelled and
// refunded are reachable only through Cancel and Refund, and a terminal
// order cannot move. Setting the current status is a no-op.
func (o *Order) UpdateStatus(to Status, actor string, now time.Time) error {
	if !to.IsValid() {
		return ErrInvalidStatus
	}
	if to == o.status {
		return nil
	}
	if o.status.IsTerminal() || to == StatusCancelled || to == StatusRefunded {
		return &InvalidTransitionError{From: o.status, To: to}
	}

	now = now.UTC()
	from := o.status
	o.status = to
	switch to {
	case StatusShipped:
		if o.shippedAt == nil {
			o.shippedAt = &now
		}
	case StatusDelivered:
		if o.deliveredAt == nil {
			o.deliveredAt = &now
		}
	}
	if to == StatusProcessing && o.paymentStatus == PaymentPending && o.paymentMethod != PaymentCashOnDelivery {
		o.paymentStatus = PaymentPaid
	}
	if to == StatusDelivered && o.paymentMethod == PaymentCashOnDelivery && o.paymentStatus == PaymentPending {
		o.paymentStatus = PaymentPaid
	}
	o.updatedAt = now
	o.AddDomainEvent(newOrderStatusChangedEvent(o, from, to, actor))
	return nil
}

func (o *Order) appendNote(text, actor string, now time.Time) {
	o.notes = append(o.notes, Note{Text: text, Actor: actor, CreatedAt: now})
}

// Clone returns a deep copy without pending events.
func (o *Order) Clone() *Order {
	c := *o
	c.ClearDomainEvents()
	c.items = slices.Clone(o.items)
	c.refunds = slices.Clone(o.refunds)
	c.notes = slices.Clone(o.notes)
	c.shippedAt = cloneTime(o.shippedAt)
	c.deliveredAt = cloneTime(o.deliveredAt)
	c.cancelledAt = cloneTime(o.cancelledAt)
	c.refundedAt = cloneTime(o.refundedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func reasonOrDefault(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "no reason given"
	}
	return reason
}
