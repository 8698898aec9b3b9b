package store

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"
)

// StarterItems is the fixed set seeded into an empty store
var StarterItems = []models.NewItem{
	{Name: "Laptop", Price: 1200000, InitialStock: 10},
	{Name: "Mouse", Price: 25000, InitialStock: 50},
	{Name: "Keyboard", Price: 70000, InitialStock: 30},
}

// SeedIfEmpty creates items when the store has none. It returns how many
// items were created.
func (s *Store) SeedIfEmpty(ctx context.Context, items []models.NewItem, ts time.Time) (int, error) {
	created := 0
	err := s.WithTx(ctx, func(tx *Tx) error {
		var n int
		if err := tx.tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM items"); err != nil {
			return fmt.Errorf("count items: %w", err)
		}
		if n > 0 {
			return nil
		}

		for _, it := range items {
			if _, err := tx.CreateItem(ctx, it.Name, it.Price, it.InitialStock, ts); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
