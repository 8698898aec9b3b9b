package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves queue in order and cancels the consumer once drained
type fakeReader struct {
	queue  []kafka.Message
	next   int
	trace  []string
	cancel context.CancelFunc
}

func newFakeReader(n int) (*fakeReader, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{cancel: cancel}
	for i := 0; i < n; i++ {
		r.queue = append(r.queue, kafka.Message{Topic: "stock-commands", Offset: int64(i)})
	}
	return r, ctx
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.next >= len(r.queue) {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.queue[r.next]
	r.next++
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.trace = append(r.trace, fmt.Sprintf("commit:%d", m.Offset))
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

var fastRetry = RetryPolicy{MaxAttempts: 3}

func TestConsumerHandlesFailedMessageAgainBeforeCommittingLaterOnes(t *testing.T) {
	reader, ctx := newFakeReader(2)
	c := NewConsumerWithReader(reader, "stock-commands", fastRetry)

	failures := 2
	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		reader.trace = append(reader.trace, fmt.Sprintf("handle:%d", msg.Offset))
		if msg.Offset == 0 && failures > 0 {
			failures--
			return errors.New("inconsistency")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{
		"handle:0", "handle:0", "handle:0", "commit:0",
		"handle:1", "commit:1",
	}, reader.trace)
}

func TestConsumerStopsWithoutCommittingWhenRetriesRunOut(t *testing.T) {
	reader, ctx := newFakeReader(2)
	c := NewConsumerWithReader(reader, "stock-commands", fastRetry)

	boom := errors.New("boom")
	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		reader.trace = append(reader.trace, fmt.Sprintf("handle:%d", msg.Offset))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"handle:0", "handle:0", "handle:0"}, reader.trace)
	assert.Equal(t, 1, reader.next, "nothing past the failing message is fetched")
}

func TestConsumerCommitsMalformedMessages(t *testing.T) {
	reader, ctx := newFakeReader(2)
	c := NewConsumerWithReader(reader, "stock-commands", fastRetry)

	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		reader.trace = append(reader.trace, fmt.Sprintf("handle:%d", msg.Offset))
		if msg.Offset == 0 {
			return fmt.Errorf("%w: not json", ErrMalformedMessage)
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"handle:0", "commit:0", "handle:1", "commit:1"}, reader.trace)
}

func TestConsumerStopsRetryingWhenContextEnds(t *testing.T) {
	reader, ctx := newFakeReader(1)
	c := NewConsumerWithReader(reader, "stock-commands", RetryPolicy{})

	calls := 0
	err := c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls == 5 {
			reader.cancel()
		}
		return errors.New("still failing")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, calls)
	assert.Empty(t, reader.trace)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublishEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w)

	require.NoError(t, p.PublishEvent(context.Background(), "item-2", map[string]int{"delta": -5}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "item-2", string(w.msgs[0].Key))

	var body map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &body))
	assert.Equal(t, -5, body["delta"])

	w.err = errors.New("broker down")
	assert.ErrorIs(t, p.PublishEvent(context.Background(), "item-2", map[string]int{}), w.err)
}
