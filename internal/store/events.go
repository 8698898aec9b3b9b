package store

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// AppendStockEvent appends an event for an existing item
func (s *Store) AppendStockEvent(ctx context.Context, itemID, delta int64, reason string, ts time.Time) (*models.StockEvent, error) {
	return appendStockEvent(ctx, s.db, itemID, delta, reason, ts)
}

// QueryEventsInRange retrieves events with start <= created_at <= end,
// oldest first, each joined with the item's current name
func (s *Store) QueryEventsInRange(ctx context.Context, start, end time.Time) ([]models.HistoryEntry, error) {
	query := s.db.Rebind(`
		SELECT stock_events.id, items.name, stock_events.delta, stock_events.reason, stock_events.created_at
		FROM stock_events
		JOIN items ON stock_events.item_id = items.id
		WHERE stock_events.created_at BETWEEN ? AND ?
		ORDER BY stock_events.created_at ASC, stock_events.id ASC`)

	entries := []models.HistoryEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, start.UTC(), end.UTC()); err != nil {
		return nil, fmt.Errorf("query stock events: %w", err)
	}
	return entries, nil
}

// SumDeltas returns the sum of all deltas recorded for an item
func (s *Store) SumDeltas(ctx context.Context, itemID int64) (int64, error) {
	return sumDeltas(ctx, s.db, itemID)
}

// AppendStockEvent appends an event inside the transaction
func (t *Tx) AppendStockEvent(ctx context.Context, itemID, delta int64, reason string, ts time.Time) (*models.StockEvent, error) {
	return appendStockEvent(ctx, t.tx, itemID, delta, reason, ts)
}

// eventSequenceLockKey is the postgres advisory lock taken by LockEventSequence
const eventSequenceLockKey int64 = 0x696e760001

// LockEventSequence serializes event appends across items until the
// transaction ends, so a timestamp taken after it is never older than one
// already committed under a lower event id. sqlite already runs one writer at
// a time and needs no lock.
func (t *Tx) LockEventSequence(ctx context.Context) error {
	if t.tx.DriverName() != DriverPostgres {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", eventSequenceLockKey); err != nil {
		return fmt.Errorf("lock event sequence: %w", err)
	}
	return nil
}

// SumDeltas sums an item's deltas inside the transaction
func (t *Tx) SumDeltas(ctx context.Context, itemID int64) (int64, error) {
	return sumDeltas(ctx, t.tx, itemID)
}

func sumDeltas(ctx context.Context, q sqlx.ExtContext, itemID int64) (int64, error) {
	var sum int64
	err := sqlx.GetContext(ctx, q, &sum,
		q.Rebind("SELECT COALESCE(SUM(delta), 0) FROM stock_events WHERE item_id = ?"), itemID)
	if err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return sum, nil
}

func appendStockEvent(ctx context.Context, q sqlx.ExtContext, itemID, delta int64, reason string, ts time.Time) (*models.StockEvent, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists,
		q.Rebind("SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)"), itemID)
	if err != nil {
		return nil, fmt.Errorf("check item: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("item id %d: %w", itemID, ErrNotFound)
	}

	event := &models.StockEvent{
		ItemID:    itemID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: ts.UTC(),
	}

	query := q.Rebind(`
		INSERT INTO stock_events (item_id, delta, reason, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	if err := sqlx.GetContext(ctx, q, &event.ID, query,
		event.ItemID, event.Delta, event.Reason, event.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert stock event: %w", err)
	}
	return event, nil
}
