package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/store"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeAdjuster fails with err on its first fails calls, or on every call when
// fails is zero
type fakeAdjuster struct {
	err   error
	fails int
	calls int
	name  string
	delta int64
}

func (f *fakeAdjuster) AdjustStock(ctx context.Context, name string, delta int64, reason string) (*service.Adjustment, error) {
	f.calls++
	f.name, f.delta = name, delta
	if f.err != nil && (f.fails == 0 || f.calls <= f.fails) {
		return nil, f.err
	}
	return &service.Adjustment{Item: name, NewStock: 10 + delta, Delta: delta, Reason: reason}, nil
}

func newTestWorker(adj StockAdjuster) *AdjustmentWorker {
	return NewAdjustmentWorker(nil, adj, zap.NewNop())
}

func command(name string, delta int64) kafka.Message {
	return kafka.Message{Value: []byte(fmt.Sprintf(
		`{"event_id":"cmd-1","event_type":%q,"item_name":%q,"delta":%d}`,
		models.EventTypeStockAdjustmentRequested, name, delta))}
}

func TestWorkerAppliesCommand(t *testing.T) {
	adj := &fakeAdjuster{}
	w := newTestWorker(adj)

	assert.NoError(t, w.eventHandler.HandleMessage(context.Background(), command("Mouse", -5)))
	assert.Equal(t, 1, adj.calls)
	assert.Equal(t, "Mouse", adj.name)
	assert.Equal(t, int64(-5), adj.delta)
}

func TestWorkerCommitsBusinessRejections(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("item %q: %w", "Monitor", store.ErrNotFound),
		&service.InsufficientStockError{Item: "Mouse", Current: 1, Delta: -5},
	} {
		w := newTestWorker(&fakeAdjuster{err: err})
		assert.NoError(t, w.eventHandler.HandleMessage(context.Background(), command("Mouse", -5)))
	}
}

func TestWorkerReturnsInconsistency(t *testing.T) {
	w := newTestWorker(&fakeAdjuster{err: fmt.Errorf("%w: rollback failed", service.ErrInconsistency)})

	err := w.eventHandler.HandleMessage(context.Background(), command("Mouse", -5))
	assert.True(t, errors.Is(err, service.ErrInconsistency))
}

// commandReader serves msgs once each and cancels the consumer once drained
type commandReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *commandReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *commandReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *commandReader) Close() error { return nil }

func startWorker(t *testing.T, adj StockAdjuster, retry broker.RetryPolicy, msgs ...kafka.Message) (*commandReader, error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := range msgs {
		msgs[i].Offset = int64(i)
	}
	reader := &commandReader{msgs: msgs, cancel: cancel}
	consumer := broker.NewConsumerWithReader(reader, "stock-commands", retry)
	w := NewAdjustmentWorker(consumer, adj, zap.NewNop())
	return reader, w.Start(ctx)
}

func TestWorkerAppliesInconsistentCommandAgainBeforeTheNext(t *testing.T) {
	adj := &fakeAdjuster{err: fmt.Errorf("%w: rollback failed", service.ErrInconsistency), fails: 1}

	reader, err := startWorker(t, adj, broker.RetryPolicy{MaxAttempts: 3},
		command("Mouse", -5), command("Keyboard", 2))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, adj.calls, "Mouse twice, then Keyboard")
	assert.Equal(t, "Keyboard", adj.name)
	assert.Equal(t, []int64{0, 1}, reader.committed)
}

func TestWorkerStopsOnPersistentInconsistency(t *testing.T) {
	adj := &fakeAdjuster{err: fmt.Errorf("%w: rollback failed", service.ErrInconsistency)}

	reader, err := startWorker(t, adj, broker.RetryPolicy{MaxAttempts: 2},
		command("Mouse", -5), command("Keyboard", 2))

	assert.ErrorIs(t, err, service.ErrInconsistency)
	assert.Equal(t, 2, adj.calls)
	assert.Equal(t, "Mouse", adj.name)
	assert.Empty(t, reader.committed)
	assert.Len(t, reader.msgs, 1, "Keyboard is never fetched")
}
