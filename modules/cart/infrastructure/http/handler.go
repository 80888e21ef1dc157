// Package http provides HTTP handlers for the cart module.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/unitygrave/cardshop/modules/cart/application"
	"github.com/unitygrave/cardshop/modules/cart/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Identity headers. Authentication is upstream; these are trusted.
const (
	UserIDHeader    = "X-User-ID"
	SessionIDHeader = "X-Session-ID"
)

type Handler struct {
	service      *application.Service
	baseCurrency string
}

// RegisterRoutes registers the cart module routes to the given mux.
func RegisterRoutes(mux *http.ServeMux, service *application.Service, baseCurrency string) {
	h := &Handler{service: service, baseCurrency: baseCurrency}

	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("GET /cart/total", h.handleTotal)
	mux.HandleFunc("POST /cart/items", h.handleAddItem)
	mux.HandleFunc("PUT /cart/items/{productId}", h.handleSetQuantity)
	mux.HandleFunc("DELETE /cart/items/{productId}", h.handleRemoveItem)
	mux.HandleFunc("DELETE /cart", h.handleClear)
	mux.HandleFunc("POST /cart/migrate", h.handleMigrate)
}

// IdentityFromRequest reads the caller identity from the identity headers.
func IdentityFromRequest(r *http.Request) (types.Identity, error) {
	return types.NewIdentity(r.Header.Get(UserIDHeader), r.Header.Get(SessionIDHeader))
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type migrateRequest struct {
	SessionID string `json:"session_id"`
}

type moneyDTO struct {
	Amount   int64  `json:"amount_minor"`
	Currency string `json:"currency_code"`
}

type cartItemDTO struct {
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
	UnitPrice moneyDTO  `json:"unit_price"`
	LineTotal moneyDTO  `json:"line_total"`
}

type cartResponse struct {
	Items     []cartItemDTO `json:"items"`
	ItemCount int           `json:"item_count"`
	Total     moneyDTO      `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) currency(r *http.Request) string {
	if c := r.URL.Query().Get("currency"); c != "" {
		return c
	}
	return h.baseCurrency
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFromRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}

	priced, total, err := h.service.Priced(r.Context(), id, h.currency(r))
	if err != nil {
		handleError(w, err)
		return
	}

	resp := cartResponse{Items: make([]cartItemDTO, 0, len(priced)), Total: toMoneyDTO(total)}
	for _, it := range priced {
		resp.ItemCount += it.Quantity
		resp.Items = append(resp.Items, cartItemDTO{
			ProductID: it.Product.ID.String(),
			Name:      it.Product.Name,
			SKU:       it.Product.SKU,
			Quantity:  it.Quantity,
			AddedAt:   it.AddedAt,
			UnitPrice: toMoneyDTO(it.UnitPrice),
			LineTotal: toMoneyDTO(it.LineTotal),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTotal(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFromRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}
	total, err := h.service.Total(r.Context(), id, h.currency(r))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMoneyDTO(total))
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFromRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	productID, err := types.ParseProductID(req.ProductID)
	if err != nil {
		handleError(w, err)
		return
	}
	if err := h.service.Add(r.Context(), id, productID, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFromRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}
	productID, err := types.ParseProductID(r.PathValue("productId"))
	if err != nil {
		handleError(w, err)
		return
	}
	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.SetQuantity(r.Context(), id, productID, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFromRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}
	productID, err := types.ParseProductID(r.PathValue("productId"))
	if err != nil {
		handleError(w, err)
		return
	}
	if err := h.service.Remove(r.Context(), id, productID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFromRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}
	if err := h.service.Clear(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMigrate moves the session cart into the identified user's cart.
// The session may come from the body or the session header.
func (h *Handler) handleMigrate(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFromRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}
	if id.IsAnonymous() {
		writeError(w, http.StatusUnauthorized, "migration requires a user identity")
		return
	}
	var req migrateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = id.SessionID
	}
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	if err := h.service.Migrate(r.Context(), sessionID, id.UserID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toMoneyDTO(m types.Money) moneyDTO {
	return moneyDTO{Amount: m.Amount(), Currency: m.Currency()}
}

func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrMissingIdentity):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, types.ErrCurrencyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidCurrency):
		writeError(w, http.StatusBadRequest, err.Error())
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
