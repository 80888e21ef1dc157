// Package domain holds the audit trail records. Records are written once,
// keyed by the id of the event that produced them.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StockMovement is one committed inventory change.
type StockMovement struct {
	EventID     string    `db:"event_id" json:"event_id"`
	ProductID   string    `db:"product_id" json:"product_id"`
	OldQuantity int       `db:"old_quantity" json:"old_quantity"`
	NewQuantity int       `db:"new_quantity" json:"new_quantity"`
	Delta       int       `db:"delta" json:"delta"`
	Reason      string    `db:"reason" json:"reason"`
	Actor       string    `db:"actor" json:"actor"`
	Reference   string    `db:"reference" json:"reference,omitempty"`
	OccurredAt  time.Time `db:"occurred_at" json:"occurred_at"`
}

// StockAlert is a low-stock or out-of-stock warning.
type StockAlert struct {
	EventID    string    `db:"event_id" json:"event_id"`
	ProductID  string    `db:"product_id" json:"product_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	Threshold  int       `db:"threshold" json:"threshold"`
	OutOfStock bool      `db:"out_of_stock" json:"out_of_stock"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

// PriceChange is one committed base-price change.
type PriceChange struct {
	EventID       string          `json:"event_id"`
	ProductID     string          `json:"product_id"`
	Currency      string          `json:"currency"`
	OldPrice      int64           `json:"old_price"`
	NewPrice      int64           `json:"new_price"`
	PercentChange decimal.Decimal `json:"percent_change"`
	Actor         string          `json:"actor"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Store persists audit records. Recording the same event twice is a no-op.
// List methods return the newest records first.
type Store interface {
	RecordMovement(ctx context.Context, m StockMovement) error
	RecordAlert(ctx context.Context, a StockAlert) error
	RecordPriceChange(ctx context.Context, c PriceChange) error

	Movements(ctx context.Context, productID string, limit int) ([]StockMovement, error)
	Alerts(ctx context.Context, productID string, limit int) ([]StockAlert, error)
	PriceHistory(ctx context.Context, productID string, limit int) ([]PriceChange, error)
}
