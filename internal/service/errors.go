package service

import (
	"errors"
	"fmt"

	"inventory-service/internal/clock"
)

var (
	// ErrInvalidDate marks a history date that is not YYYY-MM-DD.
	ErrInvalidDate = clock.ErrInvalidDate

	// ErrInconsistency means stock and history may no longer agree. It is
	// never turned into a normal result.
	ErrInconsistency = errors.New("inventory inconsistency")
)

// InsufficientStockError rejects an adjustment that would make stock negative
type InsufficientStockError struct {
	Item    string
	Current int64
	Delta   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: current=%d, delta=%d", e.Item, e.Current, e.Delta)
}
