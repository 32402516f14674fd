package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every variant of every family. All events carry
// the order id they correlate to; transport keys messages by it so
// per-order ordering survives partitioning.
type Event interface {
	EventOrderID() uuid.UUID
}

// OrderEvent is the closed family of lifecycle events this coordinator
// owns. Consumers dispatch with a type switch; an unhandled variant is a
// bug, not a skippable message.
type OrderEvent interface {
	Event
	isOrderEvent()
}

type OrderCreated struct {
	OrderID     uuid.UUID
	CustomerID  int64
	ProductID   int64
	Quantity    int
	UnitPrice   int64
	TotalAmount int64
	OccurredAt  time.Time
}

type OrderCompleted struct {
	OrderID    uuid.UUID
	OccurredAt time.Time
}

type OrderCancelled struct {
	OrderID    uuid.UUID
	OccurredAt time.Time
}

func (e OrderCreated) EventOrderID() uuid.UUID   { return e.OrderID }
func (e OrderCompleted) EventOrderID() uuid.UUID { return e.OrderID }
func (e OrderCancelled) EventOrderID() uuid.UUID { return e.OrderID }

func (OrderCreated) isOrderEvent()   {}
func (OrderCompleted) isOrderEvent() {}
func (OrderCancelled) isOrderEvent() {}

// PaymentEvent is the closed family of payment outcomes consumed from the
// payment collaborator.
type PaymentEvent interface {
	Event
	isPaymentEvent()
}

type PaymentSucceeded struct {
	OrderID    uuid.UUID
	PaymentRef uuid.UUID
	Amount     int64
	OccurredAt time.Time
}

type PaymentFailed struct {
	OrderID    uuid.UUID
	Amount     int64
	Reason     string
	OccurredAt time.Time
}

type PaymentRolledBack struct {
	OrderID    uuid.UUID
	PaymentRef uuid.UUID
	OccurredAt time.Time
}

func (e PaymentSucceeded) EventOrderID() uuid.UUID  { return e.OrderID }
func (e PaymentFailed) EventOrderID() uuid.UUID     { return e.OrderID }
func (e PaymentRolledBack) EventOrderID() uuid.UUID { return e.OrderID }

func (PaymentSucceeded) isPaymentEvent()  {}
func (PaymentFailed) isPaymentEvent()     {}
func (PaymentRolledBack) isPaymentEvent() {}

// InventoryEvent is the closed family of inventory outcomes consumed from
// the inventory collaborator.
type InventoryEvent interface {
	Event
	isInventoryEvent()
}

type InventorySucceeded struct {
	OrderID        uuid.UUID
	ReservationRef uuid.UUID
	Quantity       int
	OccurredAt     time.Time
}

type InventoryFailed struct {
	OrderID    uuid.UUID
	Quantity   int
	Reason     string
	OccurredAt time.Time
}

type InventoryRolledBack struct {
	OrderID        uuid.UUID
	ReservationRef uuid.UUID
	OccurredAt     time.Time
}

func (e InventorySucceeded) EventOrderID() uuid.UUID  { return e.OrderID }
func (e InventoryFailed) EventOrderID() uuid.UUID     { return e.OrderID }
func (e InventoryRolledBack) EventOrderID() uuid.UUID { return e.OrderID }

func (InventorySucceeded) isInventoryEvent()  {}
func (InventoryFailed) isInventoryEvent()     {}
func (InventoryRolledBack) isInventoryEvent() {}

// ShippingEvent currently has a single variant; it stays a family so the
// shipping collaborator can grow outcomes without changing consumers.
type ShippingEvent interface {
	Event
	isShippingEvent()
}

type ShippingScheduled struct {
	OrderID              uuid.UUID
	ShipmentRef          uuid.UUID
	ExpectedDeliveryDate time.Time
	OccurredAt           time.Time
}

func (e ShippingScheduled) EventOrderID() uuid.UUID { return e.OrderID }

func (ShippingScheduled) isShippingEvent() {}
