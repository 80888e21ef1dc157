// Package http exposes the audit trail read endpoints.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/unitygrave/cardshop/modules/audit/domain"
)

const defaultLimit = 50

type Handler struct {
	store domain.Store
}

func RegisterRoutes(mux *http.ServeMux, store domain.Store) {
	h := &Handler{store: store}
	mux.HandleFunc("GET /audit/products/{id}/stock-movements", h.handleMovements)
	mux.HandleFunc("GET /audit/products/{id}/stock-alerts", h.handleAlerts)
	mux.HandleFunc("GET /audit/products/{id}/price-history", h.handlePriceHistory)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.Movements(r.Context(), r.PathValue("id"), limit(r))
	respond(w, out, err)
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.Alerts(r.Context(), r.PathValue("id"), limit(r))
	respond(w, out, err)
}

func (h *Handler) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.PriceHistory(r.Context(), r.PathValue("id"), limit(r))
	respond(w, out, err)
}

func limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 500 {
		return defaultLimit
	}
	return n
}

func respond[T any](w http.ResponseWriter, records []T, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
		return
	}
	if records == nil {
		records = []T{}
	}
	_ = json.NewEncoder(w).Encode(records)
}
