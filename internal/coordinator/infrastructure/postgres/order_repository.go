package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

const orderColumns = `id, customer_id, product_id, quantity, unit_price, total_amount, status, delivery_date, created_at, updated_at`

// OrderRepository persists purchase orders. Lifecycle transitions are
// single conditional UPDATEs so two concurrent flows racing on the same
// order resolve in the store: one observes the predicate, the other sees
// zero rows.
type OrderRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOrderRepository(log *slog.Logger, pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{log: log, pool: pool}
}

func (r *OrderRepository) CreateWithOutbox(ctx context.Context, o domain.PurchaseOrder, eventType string, payload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO purchase_orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.CustomerID, o.ProductID, o.Quantity, o.UnitPrice, o.TotalAmount,
		o.Status, o.DeliveryDate, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return mapConflict(err)
	}

	if err := insertOutbox(ctx, tx, o.ID, eventType, payload, traceparent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *OrderRepository) CompleteWhenComponentsSucceeded(ctx context.Context, orderID uuid.UUID, eventType string, payload []byte, traceparent string) (domain.PurchaseOrder, bool, error) {
	return r.transition(ctx, orderID, eventType, payload, traceparent, `
		UPDATE purchase_orders po
		SET status = 'COMPLETED', updated_at = now()
		WHERE po.id = $1
		  AND po.status = 'PENDING'
		  AND EXISTS (
			SELECT 1 FROM order_components c
			WHERE c.order_id = po.id AND c.component = 'payment' AND c.outcome = 'SUCCESS'
		  )
		  AND EXISTS (
			SELECT 1 FROM order_components c
			WHERE c.order_id = po.id AND c.component = 'inventory' AND c.outcome = 'SUCCESS'
		  )
		RETURNING `+orderColumns)
}

func (r *OrderRepository) CancelWhenPending(ctx context.Context, orderID uuid.UUID, eventType string, payload []byte, traceparent string) (domain.PurchaseOrder, bool, error) {
	return r.transition(ctx, orderID, eventType, payload, traceparent, `
		UPDATE purchase_orders po
		SET status = 'CANCELLED', updated_at = now()
		WHERE po.id = $1
		  AND po.status = 'PENDING'
		RETURNING `+orderColumns)
}

// transition runs the conditional update and, only when a row actually
// transitioned, queues the lifecycle event in the outbox inside the same
// transaction.
func (r *OrderRepository) transition(ctx context.Context, orderID uuid.UUID, eventType string, payload []byte, traceparent, query string) (domain.PurchaseOrder, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.PurchaseOrder{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := scanOrder(tx.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PurchaseOrder{}, false, tx.Commit(ctx)
	}
	if err != nil {
		return domain.PurchaseOrder{}, false, mapConflict(err)
	}

	if err := insertOutbox(ctx, tx, orderID, eventType, payload, traceparent); err != nil {
		return domain.PurchaseOrder{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.PurchaseOrder{}, false, mapConflict(err)
	}
	return o, true, nil
}

func (r *OrderRepository) SetDeliveryDate(ctx context.Context, orderID uuid.UUID, deliveryDate time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE purchase_orders
		SET delivery_date = $2, updated_at = now()
		WHERE id = $1 AND status = 'COMPLETED'`,
		orderID, deliveryDate.UTC())
	return err
}

func (r *OrderRepository) Get(ctx context.Context, orderID uuid.UUID) (domain.PurchaseOrder, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PurchaseOrder{}, domain.ErrOrderNotFound
	}
	return o, err
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.PurchaseOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (domain.PurchaseOrder, error) {
	var o domain.PurchaseOrder
	err := row.Scan(&o.ID, &o.CustomerID, &o.ProductID, &o.Quantity, &o.UnitPrice,
		&o.TotalAmount, &o.Status, &o.DeliveryDate, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		"order", orderID.String(), eventType, payload, traceparent)
	return err
}

// mapConflict translates store-level write conflicts into the domain
// error the fulfillment retry understands.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return domain.ErrConcurrencyConflict
		}
	}
	return err
}
