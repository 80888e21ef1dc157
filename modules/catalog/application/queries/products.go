// Package queries contains read use cases for the catalog module.
package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

type ProductDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	SKU       string   `json:"sku"`
	Condition string   `json:"condition"`
	BasePrice MoneyDTO `json:"base_price"`
}

type MoneyDTO struct {
	Amount   int64  `json:"amount_minor"`
	Currency string `json:"currency_code"`
}

type OverrideDTO struct {
	CurrencyCode   string     `json:"currency_code"`
	Price          int64      `json:"price_minor"`
	IsActive       bool       `json:"is_active"`
	EffectiveFrom  *time.Time `json:"effective_from,omitempty"`
	EffectiveUntil *time.Time `json:"effective_until,omitempty"`
	Note           string     `json:"note,omitempty"`
}

type ListProductsQuery struct {
	Offset int
	Limit  int
}

type ListProductsResult struct {
	Products []ProductDTO `json:"products"`
	Total    int          `json:"total"`
	Offset   int          `json:"offset"`
	Limit    int          `json:"limit"`
}

type ListProductsHandler struct {
	repo domain.ProductRepository
}

func NewListProductsHandler(repo domain.ProductRepository) *ListProductsHandler {
	return &ListProductsHandler{repo: repo}
}

func (h *ListProductsHandler) Handle(ctx context.Context, query ListProductsQuery) (*ListProductsResult, error) {
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	products, total, err := h.repo.List(ctx, query.Offset, query.Limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	return &ListProductsResult{Products: dtos, Total: total, Offset: query.Offset, Limit: query.Limit}, nil
}

type ListOverridesHandler struct {
	repo domain.PriceOverrideRepository
}

func NewListOverridesHandler(repo domain.PriceOverrideRepository) *ListOverridesHandler {
	return &ListOverridesHandler{repo: repo}
}

func (h *ListOverridesHandler) Handle(ctx context.Context, productID string) ([]OverrideDTO, error) {
	id, err := types.ParseProductID(productID)
	if err != nil {
		return nil, fmt.Errorf("invalid product ID: %w", err)
	}
	list, err := h.repo.ListByProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	dtos := make([]OverrideDTO, len(list))
	for i, o := range list {
		dtos[i] = OverrideDTO{
			CurrencyCode:   o.CurrencyCode,
			Price:          o.Price,
			IsActive:       o.IsActive,
			EffectiveFrom:  o.EffectiveFrom,
			EffectiveUntil: o.EffectiveUntil,
			Note:           o.Note,
		}
	}
	return dtos, nil
}

func toProductDTO(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:        p.ID().String(),
		Name:      p.Name(),
		SKU:       p.SKU(),
		Condition: p.Condition().String(),
		BasePrice: MoneyDTO{Amount: p.BasePrice().Amount(), Currency: p.BaseCurrencyCode()},
	}
}
