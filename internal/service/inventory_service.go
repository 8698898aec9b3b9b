package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/clock"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher receives committed adjustments
type Publisher interface {
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
}

// InventoryService handles item lookup, stock adjustment and history queries
type InventoryService struct {
	store     *store.Store
	locker    Locker
	publisher Publisher
	clock     clock.Clock
	location  *time.Location
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service. A nil locker falls back
// to an in-process KeyedMutex, a nil publisher disables event publishing, a
// nil clock uses the wall clock and a nil location uses time.Local.
func NewInventoryService(
	store *store.Store,
	locker Locker,
	publisher Publisher,
	clk clock.Clock,
	location *time.Location,
) *InventoryService {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if clk == nil {
		clk = clock.NewMonotonic(nil)
	}
	if location == nil {
		location = time.Local
	}

	return &InventoryService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		clock:     clk,
		location:  location,
		logger:    util.GetLogger(),
	}
}

// Location is the timezone used for calendar days
func (s *InventoryService) Location() *time.Location {
	return s.location
}

// Adjustment is the result of a successful AdjustStock
type Adjustment struct {
	ItemID        int64     `json:"item_id"`
	Item          string    `json:"item"`
	PreviousStock int64     `json:"previous_stock"`
	NewStock      int64     `json:"new_stock"`
	Delta         int64     `json:"delta"`
	Reason        string    `json:"reason"`
	EventID       int64     `json:"event_id"`
	At            time.Time `json:"at"`
}

// DayHistory holds the stock events of one calendar day
type DayHistory struct {
	Date    string                `json:"date"`
	Start   time.Time             `json:"start"`
	End     time.Time             `json:"end"`
	Entries []models.HistoryEntry `json:"entries"`
}

// NoEvents reports that nothing happened that day
func (h *DayHistory) NoEvents() bool {
	return len(h.Entries) == 0
}

// Lookup retrieves an item by name
func (s *InventoryService) Lookup(ctx context.Context, name string) (*models.Item, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Lookup")
	defer span.End()

	item, err := s.store.FindItemByName(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		util.StockLookupsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	case err != nil:
		util.StockLookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	util.StockLookupsTotal.WithLabelValues("ok").Inc()
	return item, nil
}

// AdjustStock applies delta to the named item's stock and appends the
// matching stock event in one transaction. Adjustments that would make stock
// negative fail with *InsufficientStockError before anything is written.
func (s *InventoryService) AdjustStock(ctx context.Context, name string, delta int64, reason string) (*Adjustment, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.AdjustStock")
	defer span.End()

	start := time.Now()
	defer func() {
		util.StockAdjustmentLatency.Observe(time.Since(start).Seconds())
	}()

	unlock, err := s.locker.Lock(ctx, "item:"+name)
	if err != nil {
		util.StockAdjustmentsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("acquire lock for %q: %w", name, err)
	}
	defer unlock()

	var adj *Adjustment
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		item, err := tx.LockItemByName(ctx, name)
		if err != nil {
			return err
		}

		newStock := item.Stock + delta
		if delta > 0 && newStock < item.Stock {
			return fmt.Errorf("stock of %q would overflow", name)
		}
		if newStock < 0 {
			return &InsufficientStockError{Item: name, Current: item.Stock, Delta: delta}
		}

		if err := tx.LockEventSequence(ctx); err != nil {
			return err
		}
		now := s.clock.Now()
		if err := tx.UpdateItemStock(ctx, item.ID, newStock, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: item %q disappeared before its stock update", ErrInconsistency, name)
			}
			return err
		}

		event, err := tx.AppendStockEvent(ctx, item.ID, delta, reason, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: item %q disappeared before its stock event", ErrInconsistency, name)
			}
			return err
		}

		adj = &Adjustment{
			ItemID:        item.ID,
			Item:          item.Name,
			PreviousStock: item.Stock,
			NewStock:      newStock,
			Delta:         delta,
			Reason:        reason,
			EventID:       event.ID,
			At:            now,
		}
		return nil
	})
	if errors.Is(err, store.ErrRollbackFailed) {
		err = fmt.Errorf("%w: %v", ErrInconsistency, err)
	}

	var insufficient *InsufficientStockError
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		util.StockAdjustmentsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	case errors.As(err, &insufficient):
		util.StockAdjustmentsTotal.WithLabelValues("insufficient_stock").Inc()
		s.logger.Info("Stock adjustment rejected",
			zap.String("item", name),
			zap.Int64("current", insufficient.Current),
			zap.Int64("delta", delta))
		return nil, err
	case errors.Is(err, ErrInconsistency):
		util.StockAdjustmentsTotal.WithLabelValues("inconsistency").Inc()
		util.InventoryInconsistenciesTotal.Inc()
		s.logger.Error("Stock adjustment left inventory inconsistent",
			zap.String("item", name),
			zap.Int64("delta", delta),
			zap.Error(err))
		return nil, err
	default:
		util.StockAdjustmentsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("adjust stock of %q: %w", name, err)
	}

	util.StockAdjustmentsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Stock adjusted",
		zap.String("item", adj.Item),
		zap.Int64("previous", adj.PreviousStock),
		zap.Int64("new", adj.NewStock),
		zap.String("reason", reason))

	s.publish(ctx, adj)
	return adj, nil
}

func (s *InventoryService) publish(ctx context.Context, adj *Adjustment) {
	if s.publisher == nil {
		return
	}

	event := &models.StockAdjustedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockAdjusted,
			Timestamp: adj.At,
		},
		ItemID:        adj.ItemID,
		ItemName:      adj.Item,
		Delta:         adj.Delta,
		Reason:        adj.Reason,
		PreviousStock: adj.PreviousStock,
		NewStock:      adj.NewStock,
	}

	if err := s.publisher.PublishStockAdjusted(ctx, event); err != nil {
		util.StockEventsPublishFailedTotal.Inc()
		s.logger.Error("Failed to publish StockAdjusted event",
			zap.String("item", adj.Item),
			zap.Error(err))
	}
}

// History returns the stock events of the calendar day date (YYYY-MM-DD) in
// the service's timezone. Malformed dates fail with ErrInvalidDate before the
// store is queried.
func (s *InventoryService) History(ctx context.Context, date string) (*DayHistory, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.History")
	defer span.End()

	start, end, err := clock.DayRange(date, s.location)
	if err != nil {
		util.HistoryQueriesTotal.WithLabelValues("invalid_date").Inc()
		return nil, err
	}

	entries, err := s.store.QueryEventsInRange(ctx, start, end)
	if err != nil {
		util.HistoryQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	h := &DayHistory{Date: date, Start: start, End: end, Entries: entries}
	if h.NoEvents() {
		util.HistoryQueriesTotal.WithLabelValues("empty").Inc()
	} else {
		util.HistoryQueriesTotal.WithLabelValues("ok").Inc()
	}
	return h, nil
}

// Reconciliation compares an item's stock with its recorded history
type Reconciliation struct {
	Item         string `json:"item"`
	Stock        int64  `json:"stock"`
	InitialStock int64  `json:"initial_stock"`
	SumOfDeltas  int64  `json:"sum_of_deltas"`
}

// Reconcile checks stock == initial_stock + sum(delta) for the named item and
// returns ErrInconsistency when it does not hold.
func (s *InventoryService) Reconcile(ctx context.Context, name string) (*Reconciliation, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Reconcile")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, "item:"+name)
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %q: %w", name, err)
	}
	defer unlock()

	var rec *Reconciliation
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		item, err := tx.LockItemByName(ctx, name)
		if err != nil {
			return err
		}
		sum, err := tx.SumDeltas(ctx, item.ID)
		if err != nil {
			return err
		}
		rec = &Reconciliation{
			Item:         item.Name,
			Stock:        item.Stock,
			InitialStock: item.InitialStock,
			SumOfDeltas:  sum,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rec.Stock != rec.InitialStock+rec.SumOfDeltas {
		util.InventoryInconsistenciesTotal.Inc()
		s.logger.Error("Stock does not match history",
			zap.String("item", rec.Item),
			zap.Int64("stock", rec.Stock),
			zap.Int64("initial_stock", rec.InitialStock),
			zap.Int64("sum_of_deltas", rec.SumOfDeltas))
		return rec, fmt.Errorf("%w: %q has stock %d, history says %d",
			ErrInconsistency, rec.Item, rec.Stock, rec.InitialStock+rec.SumOfDeltas)
	}
	return rec, nil
}

// SeedStarterItems creates the starter items when the store is empty
func (s *InventoryService) SeedStarterItems(ctx context.Context, items []models.NewItem) (int, error) {
	n, err := s.store.SeedIfEmpty(ctx, items, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("seed starter items: %w", err)
	}
	if n > 0 {
		s.logger.Info("Seeded starter items", zap.Int("count", n))
	}
	return n, nil
}
