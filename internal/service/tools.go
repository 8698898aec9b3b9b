package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
)

// Tool names as exposed to MCP clients
const (
	ToolGetItemStockPrice     = "get_item_stock_price"
	ToolChangeItemStock       = "change_item_stock"
	ToolGetStockHistoryByDate = "get_stock_history_by_date"
)

const timestampLayout = "2006-01-02 15:04:05"

// Inventory is the set of operations the tool layer renders
type Inventory interface {
	Lookup(ctx context.Context, name string) (*models.Item, error)
	AdjustStock(ctx context.Context, name string, delta int64, reason string) (*Adjustment, error)
	History(ctx context.Context, date string) (*DayHistory, error)
}

// Tools renders inventory operations as human-readable messages. Not-found,
// insufficient-stock and invalid-date outcomes become messages; any other
// error, ErrInconsistency included, is returned to the caller.
type Tools struct {
	inventory Inventory
	location  *time.Location
}

func NewTools(inventory Inventory, location *time.Location) *Tools {
	if location == nil {
		location = time.Local
	}
	return &Tools{inventory: inventory, location: location}
}

// GetItemStockPrice renders price and stock of the named item
func (t *Tools) GetItemStockPrice(ctx context.Context, name string) (string, error) {
	item, err := t.inventory.Lookup(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return FormatNotFound(name), nil
	}
	if err != nil {
		return "", err
	}
	return FormatItem(item), nil
}

// ChangeItemStock adjusts stock; reason may be nil
func (t *Tools) ChangeItemStock(ctx context.Context, name string, delta int64, reason *string) (string, error) {
	r := ""
	if reason != nil {
		r = *reason
	}

	adj, err := t.inventory.AdjustStock(ctx, name, delta, r)
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return FormatNotFound(name), nil
	case errors.As(err, &insufficient):
		return FormatInsufficientStock(insufficient.Current), nil
	case err != nil:
		return "", err
	}
	return FormatAdjustment(adj), nil
}

// GetStockHistoryByDate renders one line per stock event of the day
func (t *Tools) GetStockHistoryByDate(ctx context.Context, date string) (string, error) {
	h, err := t.inventory.History(ctx, date)
	if errors.Is(err, ErrInvalidDate) {
		return FormatInvalidDate(), nil
	}
	if err != nil {
		return "", err
	}
	if h.NoEvents() {
		return FormatNoHistory(date), nil
	}

	lines := make([]string, 0, len(h.Entries))
	for _, e := range h.Entries {
		lines = append(lines, FormatHistoryEntry(e, t.location))
	}
	return strings.Join(lines, "\n"), nil
}

func FormatItem(item *models.Item) string {
	return fmt.Sprintf("%s | price: %d | stock: %d", item.Name, item.Price, item.Stock)
}

func FormatNotFound(name string) string {
	return fmt.Sprintf("'%s' not found.", name)
}

func FormatInsufficientStock(current int64) string {
	return fmt.Sprintf("Insufficient stock! Current stock: %d", current)
}

func FormatAdjustment(adj *Adjustment) string {
	return fmt.Sprintf("'%s' stock changed from %d to %d. (delta: %d, reason: %s)",
		adj.Item, adj.PreviousStock, adj.NewStock, adj.Delta, reasonOrDash(adj.Reason))
}

func FormatInvalidDate() string {
	return "Invalid date format. Use YYYY-MM-DD."
}

func FormatNoHistory(date string) string {
	return fmt.Sprintf("No stock history for %s.", date)
}

func FormatHistoryEntry(e models.HistoryEntry, loc *time.Location) string {
	return fmt.Sprintf("[%s] %s | delta: %d | reason: %s",
		e.CreatedAt.In(loc).Format(timestampLayout), e.ItemName, e.Delta, reasonOrDash(e.Reason))
}

func reasonOrDash(reason string) string {
	if reason == "" {
		return "-"
	}
	return reason
}
