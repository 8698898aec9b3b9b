package models

import "time"

// Item is a named, priced, stocked inventory entity. Name is the natural key.
type Item struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Price        int64     `db:"price" json:"price"`
	Stock        int64     `db:"stock" json:"stock"`
	InitialStock int64     `db:"initial_stock" json:"initial_stock"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StockEvent is one immutable stock change applied to an item
type StockEvent struct {
	ID        int64     `db:"id" json:"id"`
	ItemID    int64     `db:"item_id" json:"item_id"`
	Delta     int64     `db:"delta" json:"delta"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HistoryEntry is a stock event joined with the item's current name
type HistoryEntry struct {
	EventID   int64     `db:"id" json:"event_id"`
	ItemName  string    `db:"name" json:"item_name"`
	Delta     int64     `db:"delta" json:"delta"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewItem describes an item to be created by the seeder
type NewItem struct {
	Name         string
	Price        int64
	InitialStock int64
}
