package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herafy/marketplace/internal/domain/order"
)

const (
	addStoreOrdersSQL = `UPDATE stores SET orders_count = GREATEST(orders_count + $2, 0) WHERE id = $1`

	addUserOrdersSQL = `INSERT INTO users (id, active_orders, cancelled_orders)
		VALUES ($1, GREATEST($2, 0), GREATEST($3, 0))
		ON CONFLICT (id) DO UPDATE SET
			active_orders = GREATEST(users.active_orders + $2, 0),
			cancelled_orders = GREATEST(users.cancelled_orders + $3, 0)`
)

var _ order.Counters = (*CounterRepository)(nil)

// CounterRepository implements order.Counters backed by PostgreSQL. Counter
// writes are plain relative updates, so they stay consistent as long as they
// run in the same transaction as the order change that caused them.
type CounterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository returns a CounterRepository that uses the given pool.
func NewCounterRepository(pool *pgxpool.Pool) *CounterRepository {
	return &CounterRepository{pool: pool}
}

// AddStoreOrders shifts the store's order counter by delta, clamped at zero.
func (r *CounterRepository) AddStoreOrders(ctx context.Context, storeID string, delta int) error {
	if _, err := db(ctx, r.pool).Exec(ctx, addStoreOrdersSQL, storeID, delta); err != nil {
		return fmt.Errorf("adjusting orders count of store %q: %w", storeID, err)
	}
	return nil
}

// AddUserOrders shifts the user's active and cancelled order counters,
// creating the user row on first contact. Gateway-authenticated users may
// not have been seeded locally.
func (r *CounterRepository) AddUserOrders(ctx context.Context, userID string, activeDelta, cancelledDelta int) error {
	if _, err := db(ctx, r.pool).Exec(ctx, addUserOrdersSQL, userID, activeDelta, cancelledDelta); err != nil {
		return fmt.Errorf("adjusting order counters of user %q: %w", userID, err)
	}
	return nil
}
