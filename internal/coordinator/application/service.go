package application

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

// PlaceOrderRequest is the order-intake payload.
type PlaceOrderRequest struct {
	CustomerID int64 `json:"customer_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
	UnitPrice  int64 `json:"unit_price"`
}

// OrderDetails is the read-only query result: the order plus both
// component outcomes, with zero-value placeholders for components that
// have not reported yet.
type OrderDetails struct {
	Order     domain.PurchaseOrder
	Payment   domain.ComponentRecord
	Inventory domain.ComponentRecord
}

// OrderService handles order placement and the read-only query surface.
type OrderService struct {
	log    *slog.Logger
	orders OrderRepository
	ledger *ComponentLedger
}

func NewOrderService(log *slog.Logger, orders OrderRepository, ledger *ComponentLedger) *OrderService {
	return &OrderService{log: log, orders: orders, ledger: ledger}
}

// PlaceOrder creates a PENDING order and emits OrderCreated through the
// outbox in the same transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest, traceparent string) (domain.PurchaseOrder, error) {
	o := domain.NewPurchaseOrder(req.CustomerID, req.ProductID, req.Quantity, req.UnitPrice)

	payload, err := domain.MarshalEvent(domain.OrderCreated{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		UnitPrice:   o.UnitPrice,
		TotalAmount: o.TotalAmount,
		OccurredAt:  o.CreatedAt,
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	if err := s.orders.CreateWithOutbox(ctx, o, "OrderCreated", payload, traceparent); err != nil {
		return domain.PurchaseOrder{}, err
	}
	s.log.Info("order placed", "order_id", o.ID, "total_amount", o.TotalAmount)
	return o, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	return s.orders.List(ctx)
}

// GetOrderDetails is a pure read; it tolerates component records that do
// not exist yet.
func (s *OrderService) GetOrderDetails(ctx context.Context, orderID uuid.UUID) (OrderDetails, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}
	payment, err := s.ledger.Fetch(ctx, orderID, domain.ComponentPayment)
	if err != nil {
		return OrderDetails{}, err
	}
	inventory, err := s.ledger.Fetch(ctx, orderID, domain.ComponentInventory)
	if err != nil {
		return OrderDetails{}, err
	}
	return OrderDetails{Order: order, Payment: payment, Inventory: inventory}, nil
}
