package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire shape shared by every event family. Type selects
// the variant, OrderID doubles as the partition key, Payload holds the
// variant's own fields.
type Envelope struct {
	Type       string          `json:"type"`
	OrderID    uuid.UUID       `json:"order_id"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt string          `json:"occurred_at,omitempty"`
}

// EventType returns the wire name for a variant.
func EventType(ev Event) string {
	switch ev.(type) {
	case OrderCreated:
		return "OrderCreated"
	case OrderCompleted:
		return "OrderCompleted"
	case OrderCancelled:
		return "OrderCancelled"
	case PaymentSucceeded:
		return "PaymentSucceeded"
	case PaymentFailed:
		return "PaymentFailed"
	case PaymentRolledBack:
		return "PaymentRolledBack"
	case InventorySucceeded:
		return "InventorySucceeded"
	case InventoryFailed:
		return "InventoryFailed"
	case InventoryRolledBack:
		return "InventoryRolledBack"
	case ShippingScheduled:
		return "ShippingScheduled"
	}
	return ""
}

// MarshalEvent wraps an event variant in the shared envelope.
func MarshalEvent(ev Event) ([]byte, error) {
	typ := EventType(ev)
	if typ == "" {
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var occurredAt string
	if ts := eventOccurredAt(ev); !ts.IsZero() {
		occurredAt = ts.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(Envelope{
		Type:       typ,
		OrderID:    ev.EventOrderID(),
		Payload:    payload,
		OccurredAt: occurredAt,
	})
}

func eventOccurredAt(ev Event) time.Time {
	switch e := ev.(type) {
	case OrderCreated:
		return e.OccurredAt
	case OrderCompleted:
		return e.OccurredAt
	case OrderCancelled:
		return e.OccurredAt
	case PaymentSucceeded:
		return e.OccurredAt
	case PaymentFailed:
		return e.OccurredAt
	case PaymentRolledBack:
		return e.OccurredAt
	case InventorySucceeded:
		return e.OccurredAt
	case InventoryFailed:
		return e.OccurredAt
	case InventoryRolledBack:
		return e.OccurredAt
	case ShippingScheduled:
		return e.OccurredAt
	}
	return time.Time{}
}

// UnmarshalEvent decodes an envelope back into its concrete variant. A
// missing order id or an unknown type yields ErrMalformedEvent /
// ErrUnknownEvent so consumers can acknowledge instead of retrying.
func UnmarshalEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.OrderID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing order id", ErrMalformedEvent)
	}

	decode := func(v Event) (Event, error) {
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return v, nil
	}

	// Variants are seeded with the envelope's order id, so a payload
	// that omits its own copy still decodes to a correlated event.
	var ev Event
	var err error
	switch env.Type {
	case "OrderCreated":
		v := &OrderCreated{OrderID: env.OrderID}
		ev, err = decode(v)
	case "OrderCompleted":
		v := &OrderCompleted{OrderID: env.OrderID}
		ev, err = decode(v)
	case "OrderCancelled":
		v := &OrderCancelled{OrderID: env.OrderID}
		ev, err = decode(v)
	case "PaymentSucceeded":
		v := &PaymentSucceeded{OrderID: env.OrderID}
		ev, err = decode(v)
	case "PaymentFailed":
		v := &PaymentFailed{OrderID: env.OrderID}
		ev, err = decode(v)
	case "PaymentRolledBack":
		v := &PaymentRolledBack{OrderID: env.OrderID}
		ev, err = decode(v)
	case "InventorySucceeded":
		v := &InventorySucceeded{OrderID: env.OrderID}
		ev, err = decode(v)
	case "InventoryFailed":
		v := &InventoryFailed{OrderID: env.OrderID}
		ev, err = decode(v)
	case "InventoryRolledBack":
		v := &InventoryRolledBack{OrderID: env.OrderID}
		ev, err = decode(v)
	case "ShippingScheduled":
		v := &ShippingScheduled{OrderID: env.OrderID}
		ev, err = decode(v)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	if err != nil {
		return nil, err
	}
	out := deref(ev)
	if out.EventOrderID() == uuid.Nil {
		return nil, fmt.Errorf("%w: missing order id", ErrMalformedEvent)
	}
	return out, nil
}

// deref returns the value form so type switches over variants see the
// same concrete types producers emit.
func deref(ev Event) Event {
	switch v := ev.(type) {
	case *OrderCreated:
		return *v
	case *OrderCompleted:
		return *v
	case *OrderCancelled:
		return *v
	case *PaymentSucceeded:
		return *v
	case *PaymentFailed:
		return *v
	case *PaymentRolledBack:
		return *v
	case *InventorySucceeded:
		return *v
	case *InventoryFailed:
		return *v
	case *InventoryRolledBack:
		return *v
	case *ShippingScheduled:
		return *v
	}
	return ev
}
