// Package contracts defines public event contracts for inter-module communication.
// Modules should import event types from here, NOT from other module's domain packages.
package contracts

import "github.com/unitygrave/cardshop/modules/shared/events"

const (
	OrderPlacedEventType        events.EventType = "orders.OrderPlaced"
	OrderCancelledEventType     events.EventType = "orders.OrderCancelled"
	OrderRefundedEventType      events.EventType = "orders.OrderRefunded"
	OrderStatusChangedEventType events.EventType = "orders.OrderStatusChanged"
)

type OrderPlacedEvent struct {
	events.BaseEvent
	OrderID         string `json:"order_id"`
	OrderNumber     string `json:"order_number"`
	UserID          string `json:"user_id,omitempty"`
	Email           string `json:"email"`
	TotalBase       int64  `json:"total_base"`
	BaseCurrency    string `json:"base_currency"`
	TotalDisplay    int64  `json:"total_display"`
	DisplayCurrency string `json:"display_currency"`
	ItemCount       int    `json:"item_count"`
}

type OrderCancelledEvent struct {
	events.BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
	Reason      string `json:"reason"`
	Actor       string `json:"actor"`
}

type OrderRefundedEvent struct {
	events.BaseEvent
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Email         string `json:"email"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	RefundedTotal int64  `json:"refunded_total"`
	FullyRefunded bool   `json:"fully_refunded"`
	Reason        string `json:"reason"`
	Actor         string `json:"actor"`
}

type OrderStatusChangedEvent struct {
	events.BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	From        string `json:"from"`
	To          string `json:"to"`
	Actor       string `json:"actor"`
}
