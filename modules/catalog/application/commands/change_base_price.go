package commands

import (
	"context"
	"fmt"

	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

// ChangeBasePriceCommand sets a product's price in its own currency.
type ChangeBasePriceCommand struct {
	ProductID string
	Price     int64
	Actor     string
}

type ChangeBasePriceHandler struct {
	repo      domain.ProductRepository
	txScope   transaction.Scope
	publisher events.Publisher
}

func NewChangeBasePriceHandler(repo domain.ProductRepository, txScope transaction.Scope, publisher events.Publisher) *ChangeBasePriceHandler {
	return &ChangeBasePriceHandler{repo: repo, txScope: txScope, publisher: publisher}
}

// Handle records a PriceChanged event that subscribers see only after commit.
func (h *ChangeBasePriceHandler) Handle(ctx context.Context, cmd ChangeBasePriceCommand) error {
	productID, err := types.ParseProductID(cmd.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	return h.txScope.Execute(ctx, func(ctx context.Context) error {
		product, err := h.repo.FindByID(ctx, productID)
		if err != nil {
			return fmt.Errorf("finding product: %w", err)
		}
		if err := product.ChangeBasePrice(cmd.Price, cmd.Actor); err != nil {
			return err
		}
		if err := h.repo.Save(ctx, product); err != nil {
			return fmt.Errorf("saving product: %w", err)
		}
		return h.publisher.Publish(ctx, product.PopDomainEvents()...)
	})
}
