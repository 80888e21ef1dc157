// Package http provides HTTP handlers for the orders module.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/unitygrave/cardshop/modules/orders/application/commands"
	"github.com/unitygrave/cardshop/modules/orders/application/queries"
	"github.com/unitygrave/cardshop/modules/orders/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Caller headers, shared with the cart endpoints.
const (
	UserIDHeader    = "X-User-ID"
	SessionIDHeader = "X-Session-ID"
	ActorHeader     = "X-Actor"
)

// Pricing holds the checkout charges applied when a request leaves them out.
type Pricing struct {
	TaxRate      decimal.Decimal
	ShippingFlat int64
}

type Handler struct {
	placeOrder *commands.PlaceOrderHandler
	lifecycle  *commands.LifecycleHandler
	getOrder   *queries.GetOrderHandler
	listOrders *queries.ListUserOrdersHandler
	pricing    Pricing
}

// RegisterRoutes registers the orders module routes to the given mux.
func RegisterRoutes(
	mux *http.ServeMux,
	placeOrder *commands.PlaceOrderHandler,
	lifecycle *commands.LifecycleHandler,
	getOrder *queries.GetOrderHandler,
	listOrders *queries.ListUserOrdersHandler,
	pricing Pricing,
) {
	h := &Handler{
		placeOrder: placeOrder,
		lifecycle:  lifecycle,
		getOrder:   getOrder,
		listOrders: listOrders,
		pricing:    pricing,
	}

	mux.HandleFunc("POST /orders", h.handlePlaceOrder)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.handleCancelOrder)
	mux.HandleFunc("POST /orders/{id}/refund", h.handleRefundOrder)
	mux.HandleFunc("POST /orders/{id}/status", h.handleUpdateStatus)
	mux.HandleFunc("GET /users/{userId}/orders", h.handleListUserOrders)
}

// Request/Response DTOs

type placeOrderRequest struct {
	Currency      string             `json:"currency"`
	PaymentMethod string             `json:"payment_method"`
	Contact       queries.ContactDTO `json:"contact"`
	Shipping      queries.AddressDTO `json:"shipping_address"`
	Instructions  string             `json:"instructions"`
	TaxRate       *decimal.Decimal   `json:"tax_rate,omitempty"`
	ShippingFee   *int64             `json:"shipping_fee,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ProductID string `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

// Handlers

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	identity, err := types.NewIdentity(r.Header.Get(UserIDHeader), r.Header.Get(SessionIDHeader))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cmd := commands.PlaceOrderCommand{
		Identity:      identity,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Contact:       domain.Contact{Name: req.Contact.Name, Email: req.Contact.Email, Phone: req.Contact.Phone},
		Shipping: domain.Address{
			Line1: req.Shipping.Line1, Line2: req.Shipping.Line2, City: req.Shipping.City,
			Region: req.Shipping.Region, PostalCode: req.Shipping.PostalCode, Country: req.Shipping.Country,
		},
		Instructions: req.Instructions,
		TaxRate:      h.pricing.TaxRate,
		ShippingBase: h.pricing.ShippingFlat,
	}
	if req.TaxRate != nil {
		cmd.TaxRate = *req.TaxRate
	}
	if req.ShippingFee != nil {
		cmd.ShippingBase = *req.ShippingFee
	}

	order, err := h.placeOrder.Handle(r.Context(), cmd)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, queries.ToOrderDTO(order))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.getOrder.Handle(r.Context(), queries.GetOrderQuery{OrderID: r.PathValue("id")})
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	order, err := h.lifecycle.Cancel(r.Context(), commands.CancelOrderCommand{
		OrderID: r.PathValue("id"),
		Reason:  req.Reason,
		Actor:   actor(r),
	})
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queries.ToOrderDTO(order))
}

func (h *Handler) handleRefundOrder(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.lifecycle.Refund(r.Context(), commands.RefundOrderCommand{
		OrderID: r.PathValue("id"),
		Amount:  req.Amount,
		Reason:  req.Reason,
		Actor:   actor(r),
	})
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queries.ToOrderDTO(order))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.lifecycle.UpdateStatus(r.Context(), commands.UpdateStatusCommand{
		OrderID: r.PathValue("id"),
		Status:  req.Status,
		Actor:   actor(r),
	})
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queries.ToOrderDTO(order))
}

func (h *Handler) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	query := queries.ListUserOrdersQuery{
		UserID: userID,
		Offset: offset,
		Limit:  limit,
	}

	result, err := h.listOrders.Handle(r.Context(), query)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Helper functions

func actor(r *http.Request) string {
	if a := r.Header.Get(ActorHeader); a != "" {
		return a
	}
	if u := r.Header.Get(UserIDHeader); u != "" {
		return "user:" + u
	}
	return "system"
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func handleError(w http.ResponseWriter, err error) {
	var shortfall *types.InsufficientStockError
	switch {
	case errors.As(err, &shortfall):
		available := shortfall.Available
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     err.Error(),
			ProductID: shortfall.ProductID.String(),
			Requested: shortfall.Requested,
			Available: &available,
		})
	case errors.Is(err, domain.ErrPersistenceFailure):
		writeError(w, http.StatusInternalServerError, "internal server error")
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, types.ErrCurrencyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrOrderAlreadyRefunded),
		errors.Is(err, domain.ErrRefundExceedsTotal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidRefundAmount),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrInvalidContact),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPricingInput),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrMissingIdentity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNoActiveBaseCurrency):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
