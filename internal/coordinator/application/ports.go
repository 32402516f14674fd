package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

// OrderRepository owns the purchase_order rows. Lifecycle transitions are
// conditional read-modify-writes executed atomically in the store, each
// paired with an outbox insert in the same transaction so exactly one
// lifecycle event leaves per transition.
type OrderRepository interface {
	// CreateWithOutbox inserts a new PENDING order and its OrderCreated
	// outbox row in one transaction.
	CreateWithOutbox(ctx context.Context, o domain.PurchaseOrder, eventType string, payload []byte, traceparent string) error

	// CompleteWhenComponentsSucceeded transitions the order to COMPLETED
	// only if it is PENDING and both payment and inventory have SUCCESS
	// records, writing the outbox row in the same transaction. ok is
	// false when the predicate did not hold; a detected write conflict
	// returns domain.ErrConcurrencyConflict.
	CompleteWhenComponentsSucceeded(ctx context.Context, orderID uuid.UUID, eventType string, payload []byte, traceparent string) (o domain.PurchaseOrder, ok bool, err error)

	// CancelWhenPending transitions the order to CANCELLED only if it is
	// still PENDING, writing the outbox row in the same transaction.
	CancelWhenPending(ctx context.Context, orderID uuid.UUID, eventType string, payload []byte, traceparent string) (o domain.PurchaseOrder, ok bool, err error)

	// SetDeliveryDate records the expected delivery date on an order that
	// already reached COMPLETED. No-op otherwise.
	SetDeliveryDate(ctx context.Context, orderID uuid.UUID, deliveryDate time.Time) error

	Get(ctx context.Context, orderID uuid.UUID) (domain.PurchaseOrder, error)
	List(ctx context.Context) ([]domain.PurchaseOrder, error)
}

// ComponentRepository owns the per-(order, component) status rows.
type ComponentRepository interface {
	// Insert writes the record unless one already exists for the same
	// (order, component); inserted is false when the first writer won.
	Insert(ctx context.Context, rec domain.ComponentRecord) (inserted bool, err error)

	Exists(ctx context.Context, orderID uuid.UUID, c domain.Component) (bool, error)

	// SetRollback overwrites the rollback state of an existing record.
	// Missing record is a no-op: rollback acknowledges compensation, it
	// never creates state.
	SetRollback(ctx context.Context, orderID uuid.UUID, c domain.Component, state domain.RollbackState) error

	// Find returns the record, or a zero-value placeholder when the
	// component has not reported yet.
	Find(ctx context.Context, orderID uuid.UUID, c domain.Component) (domain.ComponentRecord, error)
}
