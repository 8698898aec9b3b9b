package worker

import (
	"context"
	"errors"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/store"

	"go.uber.org/zap"
)

// StockAdjuster applies stock adjustments
type StockAdjuster interface {
	AdjustStock(ctx context.Context, name string, delta int64, reason string) (*service.Adjustment, error)
}

// AdjustmentWorker applies StockAdjustmentRequested commands read from Kafka
type AdjustmentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	adjuster     StockAdjuster
	logger       *zap.Logger
}

// NewAdjustmentWorker creates a new adjustment worker
func NewAdjustmentWorker(consumer *broker.Consumer, adjuster StockAdjuster, logger *zap.Logger) *AdjustmentWorker {
	w := &AdjustmentWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		adjuster:     adjuster,
		logger:       logger,
	}
	w.eventHandler.OnStockAdjustmentRequested(w.handleAdjustmentRequested)
	return w
}

// Start consumes commands until ctx is done or a command keeps failing
func (w *AdjustmentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting adjustment worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AdjustmentWorker) Stop() error {
	w.logger.Info("Stopping adjustment worker")
	return w.consumer.Close()
}

// handleAdjustmentRequested treats rejected adjustments as handled so the
// command is committed. Anything else is returned: the consumer handles the
// command again with backoff and, when that keeps failing, stops without
// committing it.
func (w *AdjustmentWorker) handleAdjustmentRequested(ctx context.Context, event *models.StockAdjustmentRequestedEvent) error {
	adj, err := w.adjuster.AdjustStock(ctx, event.ItemName, event.Delta, event.Reason)

	var insufficient *service.InsufficientStockError
	switch {
	case err == nil:
		w.logger.Info("Adjustment command applied",
			zap.String("event_id", event.EventID),
			zap.String("item", adj.Item),
			zap.Int64("new_stock", adj.NewStock))
		return nil
	case errors.Is(err, store.ErrNotFound):
		w.logger.Warn("Adjustment command for unknown item",
			zap.String("event_id", event.EventID),
			zap.String("item", event.ItemName))
		return nil
	case errors.As(err, &insufficient):
		w.logger.Warn("Adjustment command rejected: insufficient stock",
			zap.String("event_id", event.EventID),
			zap.String("item", event.ItemName),
			zap.Int64("current", insufficient.Current),
			zap.Int64("delta", event.Delta))
		return nil
	default:
		return err
	}
}
