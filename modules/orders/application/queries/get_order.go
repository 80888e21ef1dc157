// Package queries contains read use cases for the orders module.
package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/unitygrave/cardshop/modules/orders/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// OrderDTO is a read model for order data.
type OrderDTO struct {
	ID            string         `json:"id"`
	Number        string         `json:"number"`
	UserID        string         `json:"user_id,omitempty"`
	Status        string         `json:"status"`
	PaymentStatus string         `json:"payment_status"`
	PaymentMethod string         `json:"payment_method"`
	Contact       ContactDTO     `json:"contact"`
	Shipping      AddressDTO     `json:"shipping_address"`
	Instructions  string         `json:"instructions,omitempty"`
	Items         []OrderItemDTO `json:"items"`
	Base          TotalsDTO      `json:"base_totals"`
	Display       TotalsDTO      `json:"display_totals"`
	ExchangeRate  string         `json:"exchange_rate"`
	Refunded      MoneyDTO       `json:"refunded"`
	Refunds       []RefundDTO    `json:"refunds,omitempty"`
	Notes         []NoteDTO      `json:"notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ShippedAt     *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	RefundedAt    *time.Time     `json:"refunded_at,omitempty"`
}

type OrderItemDTO struct {
	ProductID     string   `json:"product_id"`
	ProductName   string   `json:"product_name"`
	SKU           string   `json:"sku"`
	Quantity      int      `json:"quantity"`
	UnitPrice     MoneyDTO `json:"unit_price"`
	UnitPriceBase MoneyDTO `json:"unit_price_base"`
	LineTotal     MoneyDTO `json:"line_total"`
	LineTotalBase MoneyDTO `json:"line_total_base"`
}

type TotalsDTO struct {
	Subtotal MoneyDTO `json:"subtotal"`
	Tax      MoneyDTO `json:"tax"`
	Shipping MoneyDTO `json:"shipping"`
	Total    MoneyDTO `json:"total"`
}

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type ContactDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type AddressDTO struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

type RefundDTO struct {
	Amount    MoneyDTO  `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

type NoteDTO struct {
	Text      string    `json:"text"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// GetOrderQuery retrieves an order by ID.
type GetOrderQuery struct {
	OrderID string
}

type GetOrderHandler struct {
	repo domain.OrderRepository
}

func NewGetOrderHandler(repo domain.OrderRepository) *GetOrderHandler {
	return &GetOrderHandler{repo: repo}
}

func (h *GetOrderHandler) Handle(ctx context.Context, query GetOrderQuery) (*OrderDTO, error) {
	orderID, err := types.ParseOrderID(query.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderNotFound, err)
	}

	order, err := h.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return ToOrderDTO(order), nil
}

// ToOrderDTO flattens an order for transport.
func ToOrderDTO(order *domain.Order) *OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items()))
	for _, item := range order.Items() {
		items = append(items, OrderItemDTO{
			ProductID:     item.ProductID.String(),
			ProductName:   item.ProductName,
			SKU:           item.SKU,
			Quantity:      item.Quantity,
			UnitPrice:     toMoneyDTO(item.UnitPriceDisplay),
			UnitPriceBase: toMoneyDTO(item.UnitPriceBase),
			LineTotal:     toMoneyDTO(item.LineTotalDisplay),
			LineTotalBase: toMoneyDTO(item.LineTotalBase),
		})
	}

	var refunds []RefundDTO
	for _, r := range order.Refunds() {
		refunds = append(refunds, RefundDTO{Amount: toMoneyDTO(r.Amount), Reason: r.Reason, Actor: r.Actor, CreatedAt: r.CreatedAt})
	}
	var notes []NoteDTO
	for _, n := range order.Notes() {
		notes = append(notes, NoteDTO{Text: n.Text, Actor: n.Actor, CreatedAt: n.CreatedAt})
	}

	contact, ship := order.Contact(), order.ShippingAddress()
	return &OrderDTO{
		ID:            order.ID().String(),
		Number:        order.Number(),
		UserID:        order.UserID().String(),
		Status:        order.Status().String(),
		PaymentStatus: order.PaymentStatus().String(),
		PaymentMethod: order.PaymentMethod().String(),
		Contact:       ContactDTO{Name: contact.Name, Email: contact.Email, Phone: contact.Phone},
		Shipping: AddressDTO{
			Line1: ship.Line1, Line2: ship.Line2, City: ship.City,
			Region: ship.Region, PostalCode: ship.PostalCode, Country: ship.Country,
		},
		Instructions: order.Instructions(),
		Items:        items,
		Base:         toTotalsDTO(order.BaseTotals()),
		Display:      toTotalsDTO(order.DisplayTotals()),
		ExchangeRate: order.Rate().Rate.String(),
		Refunded:     toMoneyDTO(order.RefundedTotal()),
		Refunds:      refunds,
		Notes:        notes,
		CreatedAt:    order.CreatedAt(),
		UpdatedAt:    order.UpdatedAt(),
		ShippedAt:    order.ShippedAt(),
		DeliveredAt:  order.DeliveredAt(),
		CancelledAt:  order.CancelledAt(),
		RefundedAt:   order.RefundedAt(),
	}
}

func toTotalsDTO(t domain.Totals) TotalsDTO {
	return TotalsDTO{
		Subtotal: toMoneyDTO(t.Subtotal),
		Tax:      toMoneyDTO(t.Tax),
		Shipping: toMoneyDTO(t.Shipping),
		Total:    toMoneyDTO(t.Total),
	}
}

func toMoneyDTO(m types.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount(), Currency: m.Currency()}
}
