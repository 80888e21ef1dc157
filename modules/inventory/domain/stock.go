// Package domain holds per-product stock levels.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/unitygrave/cardshop/modules/shared/types"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrNegativeStock   = errors.New("stock cannot be negative")
)

// Reason records why stock moved.
type Reason string

const (
	ReasonOrderPlaced    Reason = "order_placed"
	ReasonOrderCancelled Reason = "order_cancelled"
	ReasonOrderRefunded  Reason = "order_refunded"
	ReasonAdjustment     Reason = "adjustment"
)

// Stock is the on-hand quantity of one product. A product without a row has
// zero stock.
type Stock struct {
	ProductID types.ProductID
	Quantity  int
	UpdatedAt time.Time
}

// Repository persists stock rows. Reads made inside a read-write
// transaction lock the rows they return until it ends.
type Repository interface {
	Get(ctx context.Context, productID types.ProductID) (Stock, error)
	GetMany(ctx context.Context, productIDs []types.ProductID) (map[types.ProductID]Stock, error)
	Save(ctx context.Context, stock Stock) error
}
