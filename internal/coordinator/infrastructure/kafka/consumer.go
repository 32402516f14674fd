package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
	"github.com/choreo-commerce/order-fulfillment/pkg/tracing"
)

// DuplicateMarker is the transport-level duplicate check, satisfied by
// idempotency.Store.
type DuplicateMarker interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// EventHandler applies one decoded event. A returned error means the
// message must not be acknowledged.
type EventHandler func(ctx context.Context, ev domain.Event, traceparent string) error

// MessageSource is the slice of kafka.Reader the pipeline needs.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer is the ordered processing pipeline for one topic: fetch,
// duplicate check, decode, apply, commit. Fetching is sequential, so
// messages sharing a partition (and therefore an order key) are applied
// in delivery order; parallelism across orders comes from partitioning.
//
// Commit happens only after the handler returns. A transient handler
// error aborts Run without committing, leaving the message for
// redelivery once the group resumes; that redelivery is the system's
// only retry mechanism and is safe because every handler is gated.
type Consumer struct {
	log    *slog.Logger
	name   string
	source MessageSource
	idem   DuplicateMarker
	handle EventHandler
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, idem DuplicateMarker, handle EventHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return newConsumer(log, topic, r, idem, handle)
}

func newConsumer(log *slog.Logger, name string, source MessageSource, idem DuplicateMarker, handle EventHandler) *Consumer {
	return &Consumer{
		log:    log,
		name:   name,
		source: source,
		idem:   idem,
		handle: handle,
		tracer: otel.Tracer("coordinator-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.source.Close()

	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fetch %s: %w", c.name, err)
		}

		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			return fmt.Errorf("duplicate check %s: %w", c.name, err)
		}
		if seen {
			c.log.Warn("duplicate delivery skipped", "topic", c.name, "key", key)
			if err := c.source.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "Consume "+c.name)

		ev, err := domain.UnmarshalEvent(msg.Value)
		if err != nil {
			// Malformed payloads cannot be fixed by redelivery.
			c.log.Error("dropping undecodable message", "topic", c.name,
				"partition", msg.Partition, "offset", msg.Offset, "err", err)
			span.End()
			if err := c.source.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}

		traceparent := headerValue(msg.Headers, tracing.TraceparentHeader)
		err = c.handle(msgCtx, ev, traceparent)
		span.End()
		if err != nil {
			if errors.Is(err, domain.ErrUnknownEvent) {
				c.log.Error("dropping unroutable event", "topic", c.name, "err", err)
				if err := c.source.CommitMessages(ctx, msg); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("handle %s order %s: %w", c.name, ev.EventOrderID(), err)
		}

		if err := c.idem.Mark(ctx, key); err != nil {
			return fmt.Errorf("mark processed %s: %w", c.name, err)
		}
		if err := c.source.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit %s: %w", c.name, err)
		}
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
