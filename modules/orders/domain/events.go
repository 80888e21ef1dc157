package domain

import (
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

func newOrderPlacedEvent(o *Order) contracts.OrderPlacedEvent {
	count := 0
	for _, it := range o.items {
		count += it.Quantity
	}
	return contracts.OrderPlacedEvent{
		BaseEvent:       events.NewBaseEvent(contracts.OrderPlacedEventType, o.id.String()),
		OrderID:         o.id.String(),
		OrderNumber:     o.number,
		UserID:          o.userID.String(),
		Email:           o.contact.Email,
		TotalBase:       o.base.Total.Amount(),
		BaseCurrency:    o.base.Total.Currency(),
		TotalDisplay:    o.display.Total.Amount(),
		DisplayCurrency: o.display.Total.Currency(),
		ItemCount:       count,
	}
}

func newOrderCancelledEvent(o *Order, reason, actor string) contracts.OrderCancelledEvent {
	return contracts.OrderCancelledEvent{
		BaseEvent:   events.NewBaseEvent(contracts.OrderCancelledEventType, o.id.String()),
		OrderID:     o.id.String(),
		OrderNumber: o.number,
		Email:       o.contact.Email,
		Reason:      reason,
		Actor:       actor,
	}
}

func newOrderRefundedEvent(o *Order, amount types.Money, full bool, reason, actor string) contracts.OrderRefundedEvent {
	return contracts.OrderRefundedEvent{
		BaseEvent:     events.NewBaseEvent(contracts.OrderRefundedEventType, o.id.String()),
		OrderID:       o.id.String(),
		OrderNumber:   o.number,
		Email:         o.contact.Email,
		Amount:        amount.Amount(),
		Currency:      amount.Currency(),
		RefundedTotal: o.RefundedTotal().Amount(),
		FullyRefunded: full,
		Reason:        reason,
		Actor:         actor,
	}
}

func newOrderStatusChangedEvent(o *Order, from, to Status, actor string) contracts.OrderStatusChangedEvent {
	return contracts.OrderStatusChangedEvent{
		BaseEvent:   events.NewBaseEvent(contracts.OrderStatusChangedEventType, o.id.String()),
		OrderID:     o.id.String(),
		OrderNumber: o.number,
		From:        from.String(),
		To:          to.String(),
		Actor:       actor,
	}
}
