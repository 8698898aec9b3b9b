package models

import "time"

// Event types
const (
	EventTypeStockAdjusted            = "STOCK_ADJUSTED"
	EventTypeStockAdjustmentRequested = "STOCK_ADJUSTMENT_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockAdjustedEvent published after an adjustment commits
type StockAdjustedEvent struct {
	BaseEvent
	ItemID        int64  `json:"item_id"`
	ItemName      string `json:"item_name"`
	Delta         int64  `json:"delta"`
	Reason        string `json:"reason"`
	PreviousStock int64  `json:"previous_stock"`
	NewStock      int64  `json:"new_stock"`
}

// StockAdjustmentRequestedEvent is a command asking the service to adjust stock
type StockAdjustmentRequestedEvent struct {
	BaseEvent
	ItemName string `json:"item_name"`
	Delta    int64  `json:"delta"`
	Reason   string `json:"reason,omitempty"`
}
