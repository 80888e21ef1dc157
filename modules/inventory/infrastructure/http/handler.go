// Package http provides HTTP handlers for the inventory module.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/unitygrave/cardshop/modules/inventory/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// Stocker is the part of the module the handler drives.
type Stocker interface {
	Levels(ctx context.Context, productIDs []types.ProductID) (map[types.ProductID]int, error)
	SetStock(ctx context.Context, productID types.ProductID, quantity int, actor string) error
}

type Handler struct {
	stock Stocker
}

// RegisterRoutes registers the inventory module routes to the given mux.
func RegisterRoutes(mux *http.ServeMux, stock Stocker) {
	h := &Handler{stock: stock}
	mux.HandleFunc("GET /inventory/{productId}", h.handleGet)
	mux.HandleFunc("PUT /inventory/{productId}", h.handleSet)
}

type stockResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type setStockRequest struct {
	Quantity int `json:"quantity"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseProductID(r.PathValue("productId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}
	levels, err := h.stock.Levels(r.Context(), []types.ProductID{id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: id.String(), Quantity: levels[id]})
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseProductID(r.PathValue("productId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}
	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.stock.SetStock(r.Context(), id, req.Quantity, r.Header.Get("X-Actor")); err != nil {
		if errors.Is(err, domain.ErrNegativeStock) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
