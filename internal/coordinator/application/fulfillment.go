package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

// Fulfillment decides order lifecycle transitions. Both decisions are
// conditional writes in the store; two flows racing on the same order
// resolve there, with a single retry when the store reports a conflict.
type Fulfillment struct {
	log    *slog.Logger
	orders OrderRepository
}

func NewFulfillment(log *slog.Logger, orders OrderRepository) *Fulfillment {
	return &Fulfillment{log: log, orders: orders}
}

// CompleteOrder transitions the order to COMPLETED when it is PENDING and
// both components succeeded, emitting OrderCompleted through the outbox.
// Returns nil when the predicate did not hold; that is the expected
// outcome while the sibling component is still outstanding.
func (f *Fulfillment) CompleteOrder(ctx context.Context, orderID uuid.UUID, traceparent string) (*domain.PurchaseOrder, error) {
	payload, err := domain.MarshalEvent(domain.OrderCompleted{
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	order, ok, err := f.withOneRetry(func() (domain.PurchaseOrder, bool, error) {
		return f.orders.CompleteWhenComponentsSucceeded(ctx, orderID, "OrderCompleted", payload, traceparent)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	f.log.Info("order completed", "order_id", orderID)
	return &order, nil
}

// CancelOrder transitions the order to CANCELLED when it is still
// PENDING, emitting OrderCancelled through the outbox. A failure signal
// for an already-terminal order resolves to a no-op.
func (f *Fulfillment) CancelOrder(ctx context.Context, orderID uuid.UUID, traceparent string) (*domain.PurchaseOrder, error) {
	payload, err := domain.MarshalEvent(domain.OrderCancelled{
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	order, ok, err := f.withOneRetry(func() (domain.PurchaseOrder, bool, error) {
		return f.orders.CancelWhenPending(ctx, orderID, "OrderCancelled", payload, traceparent)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	f.log.Info("order cancelled", "order_id", orderID)
	return &order, nil
}

// withOneRetry re-evaluates the transition from scratch exactly once on a
// write conflict. A second conflict surfaces so the message stays
// unacknowledged and the transport redelivers.
func (f *Fulfillment) withOneRetry(attempt func() (domain.PurchaseOrder, bool, error)) (domain.PurchaseOrder, bool, error) {
	order, ok, err := attempt()
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		f.log.Warn("write conflict on order transition, retrying once")
		order, ok, err = attempt()
	}
	return order, ok, err
}
