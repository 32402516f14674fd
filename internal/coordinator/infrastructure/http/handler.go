package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/application"
	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

// Handler exposes order intake and the read-only query surface.
type Handler struct {
	log     *slog.Logger
	service *application.OrderService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.OrderService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("coordinator-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.orderDetails)
	return r
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	var req application.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 || req.UnitPrice < 0 {
		http.Error(w, "quantity and unit_price must be positive", http.StatusBadRequest)
		return
	}

	traceparent := r.Header.Get("traceparent")
	if traceparent == "" {
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		traceparent = carrier["traceparent"]
	}

	order, err := h.service.PlaceOrder(ctx, req, traceparent)
	if err != nil {
		h.log.Error("place order failed", "err", err)
		http.Error(w, "could not place order", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(orderResponse(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	orders, err := h.service.ListOrders(ctx)
	if err != nil {
		h.log.Error("list orders failed", "err", err)
		http.Error(w, "could not list orders", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) orderDetails(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "OrderDetails")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	details, err := h.service.GetOrderDetails(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("order details failed", "order_id", id, "err", err)
		http.Error(w, "could not fetch order", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"order":     orderResponse(details.Order),
		"payment":   componentResponse(details.Payment),
		"inventory": componentResponse(details.Inventory),
	})
}

func orderResponse(o domain.PurchaseOrder) map[string]any {
	resp := map[string]any{
		"order_id":     o.ID,
		"customer_id":  o.CustomerID,
		"product_id":   o.ProductID,
		"quantity":     o.Quantity,
		"unit_price":   o.UnitPrice,
		"total_amount": o.TotalAmount,
		"status":       o.Status,
	}
	if o.DeliveryDate != nil {
		resp["delivery_date"] = o.DeliveryDate
	}
	return resp
}

func componentResponse(rec domain.ComponentRecord) map[string]any {
	if !rec.Exists() {
		return map[string]any{"outcome": nil}
	}
	resp := map[string]any{"outcome": rec.Outcome}
	if rec.Ref != nil {
		resp["ref"] = rec.Ref
	}
	if rec.Reason != "" {
		resp["reason"] = rec.Reason
	}
	if rec.Rollback != "" {
		resp["rollback"] = rec.Rollback
	}
	return resp
}
