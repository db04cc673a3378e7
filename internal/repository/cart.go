package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herafy/marketplace/internal/domain/cart"
	"github.com/herafy/marketplace/internal/domain/product"
)

const (
	getCartSQL = `SELECT id, user_id, coupon_code, total, discount, total_after_discount
		FROM carts WHERE user_id = $1`

	getCartForUpdateSQL = getCartSQL + ` FOR UPDATE`

	getCartItemsSQL = `SELECT product_id, variant_name, option_value, quantity, price
		FROM cart_items WHERE cart_id = $1 ORDER BY line_no`

	upsertCartSQL = `INSERT INTO carts (id, user_id, coupon_code, total, discount, total_after_discount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			coupon_code = EXCLUDED.coupon_code,
			total = EXCLUDED.total,
			discount = EXCLUDED.discount,
			total_after_discount = EXCLUDED.total_after_discount,
			updated_at = now()`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	insertCartItemSQL = `INSERT INTO cart_items (cart_id, line_no, product_id, variant_name, option_value, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart with its items, or cart.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.get(ctx, userID, getCartSQL)
}

// GetForUpdate returns the user's cart locking its row until the surrounding
// transaction ends, serializing concurrent mutations per user.
func (r *CartRepository) GetForUpdate(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.get(ctx, userID, getCartForUpdateSQL)
}

func (r *CartRepository) get(ctx context.Context, userID, query string) (*cart.Cart, error) {
	q := db(ctx, r.pool)

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart of user %q: %w", userID, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart of user %q: %w", userID, err)
	}

	itemRows, err := q.Query(ctx, getCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("getting items of cart %q: %w", c.ID, err)
	}
	if c.Items, err = pgx.CollectRows(itemRows, scanCartItem); err != nil {
		return nil, fmt.Errorf("getting items of cart %q: %w", c.ID, err)
	}
	return &c, nil
}

// Upsert writes the cart row and replaces its item lines.
func (r *CartRepository) Upsert(ctx context.Context, c *cart.Cart) error {
	q := db(ctx, r.pool)

	_, err := q.Exec(ctx, upsertCartSQL,
		c.ID, c.UserID, c.CouponCode, c.Total, c.Discount, c.TotalAfterDiscount,
	)
	if err != nil {
		return fmt.Errorf("upserting cart %q: %w", c.ID, err)
	}

	if _, err := q.Exec(ctx, deleteCartItemsSQL, c.ID); err != nil {
		return fmt.Errorf("clearing items of cart %q: %w", c.ID, err)
	}
	for i, it := range c.Items {
		var variantName, optionValue string
		if it.Variant != nil {
			variantName, optionValue = it.Variant.Name, it.Variant.Value
		}
		_, err := q.Exec(ctx, insertCartItemSQL,
			c.ID, i, it.ProductID, variantName, optionValue, it.Quantity, it.Price,
		)
		if err != nil {
			return fmt.Errorf("writing item %q of cart %q: %w", it.ProductID, c.ID, err)
		}
	}
	return nil
}

// Delete removes the cart; its items go with it via the FK cascade.
func (r *CartRepository) Delete(ctx context.Context, id string) error {
	if _, err := db(ctx, r.pool).Exec(ctx, deleteCartSQL, id); err != nil {
		return fmt.Errorf("deleting cart %q: %w", id, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.CouponCode, &c.Total, &c.Discount, &c.TotalAfterDiscount)
	return c, err
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it                       cart.Item
		variantName, optionValue string
	)
	err := row.Scan(&it.ProductID, &variantName, &optionValue, &it.Quantity, &it.Price)
	if variantName != "" || optionValue != "" {
		it.Variant = &product.Selection{Name: variantName, Value: optionValue}
	}
	return it, err
}
