package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// PurchaseOrder is the saga's aggregate. Its status only moves
// PENDING -> COMPLETED or PENDING -> CANCELLED; terminal states are final.
// DeliveryDate stays nil until shipping is scheduled for a completed order.
type PurchaseOrder struct {
	ID           uuid.UUID
	CustomerID   int64
	ProductID    int64
	Quantity     int
	UnitPrice    int64
	TotalAmount  int64
	Status       OrderStatus
	DeliveryDate *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewPurchaseOrder(customerID, productID int64, quantity int, unitPrice int64) PurchaseOrder {
	now := time.Now().UTC()
	return PurchaseOrder{
		ID:          uuid.New(),
		CustomerID:  customerID,
		ProductID:   productID,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalAmount: int64(quantity) * unitPrice,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (o PurchaseOrder) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}
