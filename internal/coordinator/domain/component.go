package domain

import (
	"time"

	"github.com/google/uuid"
)

// Component identifies one of the sub-transactions tracked per order.
type Component string

const (
	ComponentPayment   Component = "payment"
	ComponentInventory Component = "inventory"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

type RollbackState string

const (
	RollbackRefunded RollbackState = "REFUNDED"
	RollbackRestored RollbackState = "RESTORED"
)

// ComponentRecord tracks the outcome of a single component for a single
// order. At most one record exists per (order, component); the first
// writer wins and later duplicates are ignored. Rollback is bookkeeping
// only and never affects the order lifecycle.
type ComponentRecord struct {
	OrderID   uuid.UUID
	Component Component
	Ref       *uuid.UUID
	Outcome   Outcome
	Reason    string
	Rollback  RollbackState
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r ComponentRecord) Exists() bool {
	return r.Outcome != ""
}
