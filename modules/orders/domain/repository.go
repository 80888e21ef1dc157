package domain

import (
	"context"

	"github.com/unitygrave/cardshop/modules/shared/types"
)

// OrderRepository defines persistence operations for orders. Reads made
// inside a read-write transaction lock the order until it ends.
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id types.OrderID) (*Order, error)
	FindByNumber(ctx context.Context, number string) (*Order, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	FindByUserID(ctx context.Context, userID types.UserID, offset, limit int) ([]*Order, int, error)
}
