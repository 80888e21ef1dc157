package commands

import (
	"context"
	"fmt"

	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// CreateProductCommand adds a listing. Used for seeding.
type CreateProductCommand struct {
	Name         string
	SKU          string
	Price        int64
	CurrencyCode string
	Condition    string
}

type CreateProductHandler struct {
	repo       domain.ProductRepository
	currencies domain.CurrencyRepository
	txScope    transaction.Scope
}

func NewCreateProductHandler(repo domain.ProductRepository, currencies domain.CurrencyRepository, txScope transaction.Scope) *CreateProductHandler {
	return &CreateProductHandler{repo: repo, currencies: currencies, txScope: txScope}
}

func (h *CreateProductHandler) Handle(ctx context.Context, cmd CreateProductCommand) (types.ProductID, error) {
	price, err := types.NewMoney(cmd.Price, cmd.CurrencyCode)
	if err != nil {
		return types.ProductID{}, err
	}
	product, err := domain.NewProduct(cmd.Name, cmd.SKU, price, domain.Condition(cmd.Condition))
	if err != nil {
		return types.ProductID{}, err
	}

	err = h.txScope.Execute(ctx, func(ctx context.Context) error {
		if _, err := h.currencies.FindByCode(ctx, price.Currency()); err != nil {
			return err
		}
		if err := h.repo.Save(ctx, product); err != nil {
			return fmt.Errorf("saving product: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.ProductID{}, err
	}
	return product.ID(), nil
}
