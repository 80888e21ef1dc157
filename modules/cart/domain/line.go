// Package domain holds cart lines and the store abstraction.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/unitygrave/cardshop/modules/shared/types"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrProductNotFound = errors.New("product not found")
)

// Line is one product in a cart. A stored line always has Quantity > 0.
type Line struct {
	ProductID types.ProductID
	Quantity  int
	AddedAt   time.Time
}

// Store keeps lines per cart key. Both the persisted ledger for identified
// shoppers and the transient session store implement it.
type Store interface {
	Lines(ctx context.Context, cartKey string) ([]Line, error)
	Put(ctx context.Context, cartKey string, line Line) error
	Delete(ctx context.Context, cartKey string, productID types.ProductID) error
	Clear(ctx context.Context, cartKey string) error
}

// Find returns the line for productID.
func Find(lines []Line, productID types.ProductID) (Line, bool) {
	for _, l := range lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}
