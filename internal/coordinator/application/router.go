package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

// EventRouter fans a decoded event out to the processor for its family.
// The coordinator's own lifecycle events come back around on the shared
// bus; they carry no work for the coordinator and are acknowledged as-is
// (collaborators are the ones that react to them).
type EventRouter struct {
	log       *slog.Logger
	payments  *PaymentProcessor
	inventory *InventoryProcessor
	shipping  *ShippingProcessor
}

func NewEventRouter(log *slog.Logger, payments *PaymentProcessor, inventory *InventoryProcessor, shipping *ShippingProcessor) *EventRouter {
	return &EventRouter{log: log, payments: payments, inventory: inventory, shipping: shipping}
}

func (r *EventRouter) Route(ctx context.Context, ev domain.Event, traceparent string) error {
	switch e := ev.(type) {
	case domain.PaymentEvent:
		return r.payments.Process(ctx, e, traceparent)
	case domain.InventoryEvent:
		return r.inventory.Process(ctx, e, traceparent)
	case domain.ShippingEvent:
		return r.shipping.Process(ctx, e, traceparent)
	case domain.OrderEvent:
		r.log.Debug("own lifecycle event observed", "order_id", e.EventOrderID())
		return nil
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
	}
}
