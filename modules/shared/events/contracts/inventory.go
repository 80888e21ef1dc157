package contracts

import "github.com/unitygrave/cardshop/modules/shared/events"

const (
	StockChangedEventType events.EventType = "inventory.StockChanged"
	LowStockEventType     events.EventType = "inventory.LowStock"
)

// StockChangedEvent is the provenance record of one committed stock mutation.
type StockChangedEvent struct {
	events.BaseEvent
	ProductID   string `json:"product_id"`
	OldQuantity int    `json:"old_quantity"`
	NewQuantity int    `json:"new_quantity"`
	Delta       int    `json:"delta"`
	Reason      string `json:"reason"`
	Actor       string `json:"actor"`
	Reference   string `json:"reference,omitempty"`
}

// LowStockEvent fires once when stock crosses the threshold downward or hits zero.
type LowStockEvent struct {
	events.BaseEvent
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	Threshold  int    `json:"threshold"`
	OutOfStock bool   `json:"out_of_stock"`
}
