package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
	"github.com/choreo-commerce/order-fulfillment/pkg/dedup"
)

// PaymentProcessor turns payment outcomes into ledger writes and
// lifecycle decisions. Success and failure are gated so the ledger write
// and the decision run at most once per (order, component); a redelivered
// event acknowledges silently with no emitted lifecycle event.
type PaymentProcessor struct {
	log         *slog.Logger
	ledger      *ComponentLedger
	fulfillment *Fulfillment
}

func NewPaymentProcessor(log *slog.Logger, ledger *ComponentLedger, fulfillment *Fulfillment) *PaymentProcessor {
	return &PaymentProcessor{log: log, ledger: ledger, fulfillment: fulfillment}
}

func (p *PaymentProcessor) Process(ctx context.Context, ev domain.PaymentEvent, traceparent string) error {
	switch e := ev.(type) {
	case domain.PaymentSucceeded:
		return p.guarded(ctx, e.OrderID, func(ctx context.Context) error {
			if err := p.ledger.RecordSuccess(ctx, e.OrderID, domain.ComponentPayment, e.PaymentRef); err != nil {
				return err
			}
			_, err := p.fulfillment.CompleteOrder(ctx, e.OrderID, traceparent)
			return err
		})
	case domain.PaymentFailed:
		return p.guarded(ctx, e.OrderID, func(ctx context.Context) error {
			if err := p.ledger.RecordFailure(ctx, e.OrderID, domain.ComponentPayment, e.Reason); err != nil {
				return err
			}
			_, err := p.fulfillment.CancelOrder(ctx, e.OrderID, traceparent)
			return err
		})
	case domain.PaymentRolledBack:
		return p.ledger.RecordRollback(ctx, e.OrderID, domain.ComponentPayment, domain.RollbackRefunded)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
	}
}

func (p *PaymentProcessor) guarded(ctx context.Context, orderID uuid.UUID, op func(context.Context) error) error {
	err := guard(ctx, p.ledger, orderID, domain.ComponentPayment, op)
	if errors.Is(err, dedup.ErrAlreadyProcessed) {
		p.log.Warn("duplicate payment event skipped", "order_id", orderID)
		return nil
	}
	return err
}

// InventoryProcessor is the inventory counterpart of PaymentProcessor.
// A late InventorySucceeded for an order that payment failure already
// cancelled still records the component outcome, which is what lets the
// inventory collaborator restock on the broadcast OrderCancelled; the
// lifecycle itself never leaves CANCELLED.
type InventoryProcessor struct {
	log         *slog.Logger
	ledger      *ComponentLedger
	fulfillment *Fulfillment
}

func NewInventoryProcessor(log *slog.Logger, ledger *ComponentLedger, fulfillment *Fulfillment) *InventoryProcessor {
	return &InventoryProcessor{log: log, ledger: ledger, fulfillment: fulfillment}
}

func (p *InventoryProcessor) Process(ctx context.Context, ev domain.InventoryEvent, traceparent string) error {
	switch e := ev.(type) {
	case domain.InventorySucceeded:
		return p.guarded(ctx, e.OrderID, func(ctx context.Context) error {
			if err := p.ledger.RecordSuccess(ctx, e.OrderID, domain.ComponentInventory, e.ReservationRef); err != nil {
				return err
			}
			_, err := p.fulfillment.CompleteOrder(ctx, e.OrderID, traceparent)
			return err
		})
	case domain.InventoryFailed:
		return p.guarded(ctx, e.OrderID, func(ctx context.Context) error {
			if err := p.ledger.RecordFailure(ctx, e.OrderID, domain.ComponentInventory, e.Reason); err != nil {
				return err
			}
			_, err := p.fulfillment.CancelOrder(ctx, e.OrderID, traceparent)
			return err
		})
	case domain.InventoryRolledBack:
		return p.ledger.RecordRollback(ctx, e.OrderID, domain.ComponentInventory, domain.RollbackRestored)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
	}
}

func (p *InventoryProcessor) guarded(ctx context.Context, orderID uuid.UUID, op func(context.Context) error) error {
	err := guard(ctx, p.ledger, orderID, domain.ComponentInventory, op)
	if errors.Is(err, dedup.ErrAlreadyProcessed) {
		p.log.Warn("duplicate inventory event skipped", "order_id", orderID)
		return nil
	}
	return err
}

// ShippingProcessor is informational only: it stamps the delivery date on
// a completed order and never touches the lifecycle.
type ShippingProcessor struct {
	log    *slog.Logger
	orders OrderRepository
}

func NewShippingProcessor(log *slog.Logger, orders OrderRepository) *ShippingProcessor {
	return &ShippingProcessor{log: log, orders: orders}
}

func (p *ShippingProcessor) Process(ctx context.Context, ev domain.ShippingEvent, traceparent string) error {
	switch e := ev.(type) {
	case domain.ShippingScheduled:
		if err := p.orders.SetDeliveryDate(ctx, e.OrderID, e.ExpectedDeliveryDate); err != nil {
			return err
		}
		p.log.Info("delivery date recorded", "order_id", e.OrderID, "shipment_ref", e.ShipmentRef)
		return nil
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
	}
}

// guard runs op behind the order-scoped duplicate check: a component
// record already on file means the event was applied before, so op is
// never invoked.
func guard(ctx context.Context, ledger *ComponentLedger, orderID uuid.UUID, c domain.Component, op func(context.Context) error) error {
	_, err := dedup.Validate(ctx,
		func(ctx context.Context) (bool, error) {
			return ledger.Exists(ctx, orderID, c)
		},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, op(ctx)
		},
	)
	return err
}
