package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

type fakeSource struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeSource) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type fakeMarker struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeMarker() *fakeMarker { return &fakeMarker{seen: map[string]bool{}} }

func (m *fakeMarker) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%d:%d", topic, partition, offset)
}

func (m *fakeMarker) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[key], nil
}

func (m *fakeMarker) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[key] = true
	return nil
}

func message(t *testing.T, offset int64, ev domain.Event) kafka.Message {
	t.Helper()
	value, err := domain.MarshalEvent(ev)
	require.NoError(t, err)
	return kafka.Message{
		Topic:  "payment-events",
		Offset: offset,
		Key:    []byte(ev.EventOrderID().String()),
		Value:  value,
	}
}

func TestConsumerAppliesAndCommitsInOrder(t *testing.T) {
	orderID := uuid.New()
	src := &fakeSource{msgs: []kafka.Message{
		message(t, 1, domain.PaymentSucceeded{OrderID: orderID, PaymentRef: uuid.New(), Amount: 6}),
		message(t, 2, domain.PaymentRolledBack{OrderID: orderID, PaymentRef: uuid.New()}),
	}}

	var handled []int64
	c := newConsumer(slog.New(slog.DiscardHandler), "payment-events", src, newFakeMarker(),
		func(ctx context.Context, ev domain.Event, traceparent string) error {
			handled = append(handled, int64(len(handled))+1)
			return nil
		})

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []int64{1, 2}, handled)
	assert.Equal(t, []int64{1, 2}, src.committed)
	assert.True(t, src.closed)
}

func TestConsumerSkipsAndAcknowledgesDuplicateDelivery(t *testing.T) {
	orderID := uuid.New()
	ev := domain.PaymentSucceeded{OrderID: orderID, PaymentRef: uuid.New(), Amount: 6}
	src := &fakeSource{msgs: []kafka.Message{
		message(t, 5, ev),
		message(t, 5, ev), // same offset redelivered
	}}

	handled := 0
	c := newConsumer(slog.New(slog.DiscardHandler), "payment-events", src, newFakeMarker(),
		func(ctx context.Context, ev domain.Event, traceparent string) error {
			handled++
			return nil
		})

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, handled)
	assert.Equal(t, []int64{5, 5}, src.committed, "the duplicate is still acknowledged")
}

func TestConsumerAcknowledgesMalformedMessages(t *testing.T) {
	src := &fakeSource{msgs: []kafka.Message{
		{Topic: "payment-events", Offset: 9, Value: []byte("not json")},
	}}

	handled := 0
	c := newConsumer(slog.New(slog.DiscardHandler), "payment-events", src, newFakeMarker(),
		func(ctx context.Context, ev domain.Event, traceparent string) error {
			handled++
			return nil
		})

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 0, handled)
	assert.Equal(t, []int64{9}, src.committed)
}

func TestConsumerDoesNotCommitOnTransientFailure(t *testing.T) {
	orderID := uuid.New()
	src := &fakeSource{msgs: []kafka.Message{
		message(t, 3, domain.PaymentSucceeded{OrderID: orderID, PaymentRef: uuid.New(), Amount: 6}),
	}}

	boom := errors.New("store unavailable")
	marker := newFakeMarker()
	c := newConsumer(slog.New(slog.DiscardHandler), "payment-events", src, marker,
		func(ctx context.Context, ev domain.Event, traceparent string) error {
			return boom
		})

	err := c.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, src.committed, "failed message must stay unacknowledged")

	seen, err2 := marker.Seen(context.Background(), marker.Key("payment-events", 0, 3))
	require.NoError(t, err2)
	assert.False(t, seen, "failed message must not be marked processed")
}

func TestConsumerDropsUnroutableEvents(t *testing.T) {
	orderID := uuid.New()
	src := &fakeSource{msgs: []kafka.Message{
		message(t, 7, domain.PaymentSucceeded{OrderID: orderID, PaymentRef: uuid.New(), Amount: 6}),
	}}

	c := newConsumer(slog.New(slog.DiscardHandler), "payment-events", src, newFakeMarker(),
		func(ctx context.Context, ev domain.Event, traceparent string) error {
			return fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
		})

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []int64{7}, src.committed)
}
