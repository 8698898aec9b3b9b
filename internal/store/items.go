package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const itemColumns = "id, name, price, stock, initial_stock, created_at, updated_at"

// FindItemByName retrieves an item by its unique name
func (s *Store) FindItemByName(ctx context.Context, name string) (*models.Item, error) {
	return findItemByName(ctx, s.db, name, false)
}

// CreateItem inserts a new item with stock set to initialStock
func (s *Store) CreateItem(ctx context.Context, name string, price, initialStock int64, ts time.Time) (*models.Item, error) {
	return createItem(ctx, s.db, name, price, initialStock, ts)
}

// UpdateItemStock overwrites stock and updated_at of an existing item
func (s *Store) UpdateItemStock(ctx context.Context, itemID, newStock int64, ts time.Time) error {
	return updateItemStock(ctx, s.db, itemID, newStock, ts)
}

// CountItems returns the number of items
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM items")
	return n, err
}

// ListItems retrieves all items ordered by id
func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := s.db.SelectContext(ctx, &items, "SELECT "+itemColumns+" FROM items ORDER BY id")
	return items, err
}

// LockItemByName reads an item and, on postgres, row-locks it until the
// transaction ends
func (t *Tx) LockItemByName(ctx context.Context, name string) (*models.Item, error) {
	return findItemByName(ctx, t.tx, name, t.tx.DriverName() == DriverPostgres)
}

// CreateItem inserts a new item inside the transaction
func (t *Tx) CreateItem(ctx context.Context, name string, price, initialStock int64, ts time.Time) (*models.Item, error) {
	return createItem(ctx, t.tx, name, price, initialStock, ts)
}

// UpdateItemStock overwrites stock and updated_at inside the transaction
func (t *Tx) UpdateItemStock(ctx context.Context, itemID, newStock int64, ts time.Time) error {
	return updateItemStock(ctx, t.tx, itemID, newStock, ts)
}

func findItemByName(ctx context.Context, q sqlx.ExtContext, name string, forUpdate bool) (*models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE name = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var item models.Item
	err := sqlx.GetContext(ctx, q, &item, q.Rebind(query), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return &item, nil
}

func createItem(ctx context.Context, q sqlx.ExtContext, name string, price, initialStock int64, ts time.Time) (*models.Item, error) {
	if name == "" {
		return nil, fmt.Errorf("item name must not be empty")
	}
	if price < 0 || initialStock < 0 {
		return nil, fmt.Errorf("item %q: price and stock must not be negative", name)
	}

	ts = ts.UTC()
	item := &models.Item{
		Name:         name,
		Price:        price,
		Stock:        initialStock,
		InitialStock: initialStock,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	query := q.Rebind(`
		INSERT INTO items (name, price, stock, initial_stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := sqlx.GetContext(ctx, q, &item.ID, query,
		item.Name, item.Price, item.Stock, item.InitialStock, item.CreatedAt, item.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("item %q: %w", name, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func updateItemStock(ctx context.Context, q sqlx.ExtContext, itemID, newStock int64, ts time.Time) error {
	result, err := q.ExecContext(ctx,
		q.Rebind("UPDATE items SET stock = ?, updated_at = ? WHERE id = ?"),
		newStock, ts.UTC(), itemID)
	if err != nil {
		return fmt.Errorf("update item stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item stock: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item id %d: %w", itemID, ErrNotFound)
	}
	return nil
}
