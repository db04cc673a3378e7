package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herafy/marketplace/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, user_id, shipping_address, coupon_code, status, subtotal, tax, shipping_fee,
		total_amount, paid_at, shipped_at, delivered_at, store_deleted_at, created_at
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	getOrderItemsSQL = `SELECT id, product_id, store_id, name, image, price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`

	insertOrderSQL = `INSERT INTO orders (id, user_id, shipping_address, coupon_code, status, subtotal, tax,
		shipping_fee, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, store_id, name, image, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateOrderSQL = `UPDATE orders SET status = $2, subtotal = $3, tax = $4, shipping_fee = $5, total_amount = $6,
		paid_at = $7, shipped_at = $8, delivered_at = $9, store_deleted_at = $10
		WHERE id = $1`

	updateOrderItemSQL = `UPDATE order_items SET price = $2, quantity = $3 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns the order with its items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, getOrderSQL)
}

// GetForUpdate returns the order locking its row until the surrounding
// transaction ends.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, getOrderForUpdateSQL)
}

func (r *OrderRepository) get(ctx context.Context, id, query string) (*order.Order, error) {
	q := db(ctx, r.pool)

	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := q.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	if o.Items, err = pgx.CollectRows(itemRows, scanOrderItem); err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	return &o, nil
}

// Create persists a new order with its item snapshots.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := db(ctx, r.pool)

	_, err := q.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.ShippingAddress, o.CouponCode, string(o.Status),
		o.Subtotal, o.Tax, o.ShippingFee, o.TotalAmount, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, it := range o.Items {
		_, err := q.Exec(ctx, insertOrderItemSQL,
			it.ID, o.ID, it.ProductID, it.StoreID, it.Name, it.Image, it.Price, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("creating item %q of order %q: %w", it.ID, o.ID, err)
		}
	}
	return nil
}

// Update writes back the order row and the price/quantity of every item
// snapshot.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	q := db(ctx, r.pool)

	tag, err := q.Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), o.Subtotal, o.Tax, o.ShippingFee, o.TotalAmount,
		o.PaidAt, o.ShippedAt, o.DeliveredAt, o.StoreDeletedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	for _, it := range o.Items {
		if _, err := q.Exec(ctx, updateOrderItemSQL, it.ID, it.Price, it.Quantity); err != nil {
			return fmt.Errorf("updating item %q of order %q: %w", it.ID, o.ID, err)
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.ShippingAddress, &o.CouponCode, &status,
		&o.Subtotal, &o.Tax, &o.ShippingFee, &o.TotalAmount,
		&o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.StoreDeletedAt, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ID, &it.ProductID, &it.StoreID, &it.Name, &it.Image, &it.Price, &it.Quantity)
	return it, err
}
