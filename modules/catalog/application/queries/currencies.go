package queries

import (
	"context"
	"time"

	"github.com/unitygrave/cardshop/modules/catalog/domain"
)

type CurrencyDTO struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	ExchangeRate  string    `json:"exchange_rate"`
	DecimalPlaces int32     `json:"decimal_places"`
	IsBase        bool      `json:"is_base"`
	RateUpdatedAt time.Time `json:"rate_updated_at"`
	RateOutdated  bool      `json:"rate_outdated"`
}

// ListCurrenciesHandler lists active currencies with their rate freshness.
type ListCurrenciesHandler struct {
	repo   domain.CurrencyRepository
	maxAge time.Duration
	now    func() time.Time
}

func NewListCurrenciesHandler(repo domain.CurrencyRepository, maxAge time.Duration) *ListCurrenciesHandler {
	return &ListCurrenciesHandler{repo: repo, maxAge: maxAge, now: time.Now}
}

func (h *ListCurrenciesHandler) Handle(ctx context.Context) ([]CurrencyDTO, error) {
	all, err := h.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := h.now()
	dtos := make([]CurrencyDTO, 0, len(all))
	for _, c := range all {
		if !c.IsActive {
			continue
		}
		dtos = append(dtos, CurrencyDTO{
			Code:          c.Code,
			Name:          c.Name,
			Symbol:        c.Symbol,
			ExchangeRate:  c.Rate().String(),
			DecimalPlaces: c.DecimalPlaces,
			IsBase:        c.IsBase,
			RateUpdatedAt: c.RateUpdatedAt,
			RateOutdated:  c.IsOutdated(now, h.maxAge),
		})
	}
	return dtos, nil
}
