package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
)

// ComponentRepository persists component status records. The
// (order_id, component) primary key plus ON CONFLICT DO NOTHING gives
// first-writer-wins without application locking.
type ComponentRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewComponentRepository(log *slog.Logger, pool *pgxpool.Pool) *ComponentRepository {
	return &ComponentRepository{log: log, pool: pool}
}

func (r *ComponentRepository) Insert(ctx context.Context, rec domain.ComponentRecord) (bool, error) {
	now := time.Now().UTC()
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO order_components (order_id, component, ref, outcome, reason, rollback_state, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,'',$6,$6)
		ON CONFLICT (order_id, component) DO NOTHING`,
		rec.OrderID, rec.Component, rec.Ref, rec.Outcome, rec.Reason, now)
	if err != nil {
		return false, mapConflict(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *ComponentRepository) Exists(ctx context.Context, orderID uuid.UUID, c domain.Component) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_components WHERE order_id = $1 AND component = $2
		)`, orderID, c).Scan(&exists)
	return exists, err
}

func (r *ComponentRepository) SetRollback(ctx context.Context, orderID uuid.UUID, c domain.Component, state domain.RollbackState) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE order_components
		SET rollback_state = $3, updated_at = now()
		WHERE order_id = $1 AND component = $2`,
		orderID, c, state)
	return err
}

func (r *ComponentRepository) Find(ctx context.Context, orderID uuid.UUID, c domain.Component) (domain.ComponentRecord, error) {
	var rec domain.ComponentRecord
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, component, ref, outcome, reason, rollback_state, created_at, updated_at
		FROM order_components
		WHERE order_id = $1 AND component = $2`,
		orderID, c).
		Scan(&rec.OrderID, &rec.Component, &rec.Ref, &rec.Outcome, &rec.Reason,
			&rec.Rollback, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ComponentRecord{OrderID: orderID, Component: c}, nil
	}
	return rec, err
}
