// Package http provides HTTP handlers for the catalog module.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/unitygrave/cardshop/modules/catalog/application/commands"
	"github.com/unitygrave/cardshop/modules/catalog/application/pricing"
	"github.com/unitygrave/cardshop/modules/catalog/application/queries"
	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// ActorHeader names the caller on admin writes.
const ActorHeader = "X-Actor"

type Handler struct {
	resolver           *pricing.Resolver
	upsertOverride     *commands.UpsertPriceOverrideHandler
	deactivateOverride *commands.DeactivatePriceOverrideHandler
	changeBasePrice    *commands.ChangeBasePriceHandler
	listProducts       *queries.ListProductsHandler
	listOverrides      *queries.ListOverridesHandler
	listCurrencies     *queries.ListCurrenciesHandler
}

func NewHandler(
	resolver *pricing.Resolver,
	upsertOverride *commands.UpsertPriceOverrideHandler,
	deactivateOverride *commands.DeactivatePriceOverrideHandler,
	changeBasePrice *commands.ChangeBasePriceHandler,
	listProducts *queries.ListProductsHandler,
	listOverrides *queries.ListOverridesHandler,
	listCurrencies *queries.ListCurrenciesHandler,
) *Handler {
	return &Handler{
		resolver:           resolver,
		upsertOverride:     upsertOverride,
		deactivateOverride: deactivateOverride,
		changeBasePrice:    changeBasePrice,
		listProducts:       listProducts,
		listOverrides:      listOverrides,
		listCurrencies:     listCurrencies,
	}
}

// RegisterRoutes registers the catalog module routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /products/{id}/price", h.handleGetPrice)
	mux.HandleFunc("PUT /products/{id}/price", h.handleChangeBasePrice)
	mux.HandleFunc("GET /products/{id}/overrides", h.handleListOverrides)
	mux.HandleFunc("PUT /products/{id}/overrides/{currency}", h.handleUpsertOverride)
	mux.HandleFunc("DELETE /products/{id}/overrides/{currency}", h.handleDeactivateOverride)
	mux.HandleFunc("GET /currencies", h.handleListCurrencies)
}

type priceResponse struct {
	ProductID    string `json:"product_id"`
	Amount       int64  `json:"amount_minor"`
	CurrencyCode string `json:"currency_code"`
	Formatted    string `json:"formatted"`
	RateOutdated bool   `json:"rate_outdated"`
}

type overrideRequest struct {
	Price          int64      `json:"price_minor"`
	EffectiveFrom  *time.Time `json:"effective_from"`
	EffectiveUntil *time.Time `json:"effective_until"`
	Note           string     `json:"note"`
}

type basePriceRequest struct {
	Price int64 `json:"price_minor"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	productID, err := types.ParseProductID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}
	code := r.URL.Query().Get("currency")
	if code == "" {
		base, err := h.resolver.BaseCurrency(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		code = base.Code
	}

	quote, err := h.resolver.Quote(r.Context(), productID, code)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		ProductID:    quote.ProductID,
		Amount:       quote.Price.Amount(),
		CurrencyCode: quote.Price.Currency(),
		Formatted:    quote.Formatted,
		RateOutdated: quote.RateOutdated,
	})
}

func (h *Handler) handleChangeBasePrice(w http.ResponseWriter, r *http.Request) {
	var req basePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cmd := commands.ChangeBasePriceCommand{
		ProductID: r.PathValue("id"),
		Price:     req.Price,
		Actor:     r.Header.Get(ActorHeader),
	}
	if err := h.changeBasePrice.Handle(r.Context(), cmd); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpsertOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cmd := commands.UpsertPriceOverrideCommand{
		ProductID:      r.PathValue("id"),
		CurrencyCode:   r.PathValue("currency"),
		Price:          req.Price,
		EffectiveFrom:  req.EffectiveFrom,
		EffectiveUntil: req.EffectiveUntil,
		Note:           req.Note,
		Actor:          r.Header.Get(ActorHeader),
	}
	if err := h.upsertOverride.Handle(r.Context(), cmd); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeactivateOverride(w http.ResponseWriter, r *http.Request) {
	cmd := commands.DeactivatePriceOverrideCommand{
		ProductID:    r.PathValue("id"),
		CurrencyCode: r.PathValue("currency"),
		Actor:        r.Header.Get(ActorHeader),
	}
	if err := h.deactivateOverride.Handle(r.Context(), cmd); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.listProducts.Handle(r.Context(), queries.ListProductsQuery{Offset: offset, Limit: limit})
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	list, err := h.listOverrides.Handle(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.listCurrencies.Handle(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOverrideNotFound),
		errors.Is(err, types.ErrCurrencyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrInvalidRate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
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
