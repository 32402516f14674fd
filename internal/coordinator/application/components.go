package application

import (
	"log/slog"

	"context"

	"github.com/google/uuid"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
	"github.com/choreo-commerce/order-fulfillment/pkg/dedup"
)

// ComponentLedger records component outcomes at most once per
// (order, component). A lost race on insert surfaces as
// dedup.ErrAlreadyProcessed so callers treat it like any other duplicate.
type ComponentLedger struct {
	log  *slog.Logger
	repo ComponentRepository
}

func NewComponentLedger(log *slog.Logger, repo ComponentRepository) *ComponentLedger {
	return &ComponentLedger{log: log, repo: repo}
}

func (l *ComponentLedger) Exists(ctx context.Context, orderID uuid.UUID, c domain.Component) (bool, error) {
	return l.repo.Exists(ctx, orderID, c)
}

func (l *ComponentLedger) RecordSuccess(ctx context.Context, orderID uuid.UUID, c domain.Component, ref uuid.UUID) error {
	rec := domain.ComponentRecord{
		OrderID:   orderID,
		Component: c,
		Ref:       &ref,
		Outcome:   domain.OutcomeSuccess,
	}
	return l.insert(ctx, rec)
}

func (l *ComponentLedger) RecordFailure(ctx context.Context, orderID uuid.UUID, c domain.Component, reason string) error {
	rec := domain.ComponentRecord{
		OrderID:   orderID,
		Component: c,
		Outcome:   domain.OutcomeFailure,
		Reason:    reason,
	}
	return l.insert(ctx, rec)
}

func (l *ComponentLedger) insert(ctx context.Context, rec domain.ComponentRecord) error {
	inserted, err := l.repo.Insert(ctx, rec)
	if err != nil {
		return err
	}
	if !inserted {
		return dedup.ErrAlreadyProcessed
	}
	l.log.Info("component outcome recorded",
		"order_id", rec.OrderID, "component", rec.Component, "outcome", rec.Outcome)
	return nil
}

// RecordRollback acknowledges a compensating action (refund confirmed,
// stock restored). It touches only the rollback field and never the
// order lifecycle; an order is not resurrected by compensation.
func (l *ComponentLedger) RecordRollback(ctx context.Context, orderID uuid.UUID, c domain.Component, state domain.RollbackState) error {
	if err := l.repo.SetRollback(ctx, orderID, c, state); err != nil {
		return err
	}
	l.log.Info("component rollback recorded", "order_id", orderID, "component", c, "state", state)
	return nil
}

func (l *ComponentLedger) Fetch(ctx context.Context, orderID uuid.UUID, c domain.Component) (domain.ComponentRecord, error) {
	return l.repo.Find(ctx, orderID, c)
}
