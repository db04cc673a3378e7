package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herafy/marketplace/internal/domain/product"
)

// Conditional updates keep the floor check and the decrement in one
// statement, so concurrent reservations against the same row serialize on
// the row lock and can never drive stock negative. A NULL option stock stays
// NULL: untracked availability is never consumed.
const (
	reserveBaseStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND is_deleted = FALSE AND stock >= $2`

	releaseBaseStockSQL = `UPDATE products SET stock = stock + $2
		WHERE id = $1`

	reserveOptionStockSQL = `UPDATE variant_options vo SET stock = vo.stock - $4
		FROM product_variants pv
		WHERE vo.variant_id = pv.id AND pv.product_id = $1 AND pv.name = $2 AND vo.value = $3
			AND (vo.stock IS NULL OR vo.stock >= $4)`

	releaseOptionStockSQL = `UPDATE variant_options vo SET stock = vo.stock + $4
		FROM product_variants pv
		WHERE vo.variant_id = pv.id AND pv.product_id = $1 AND pv.name = $2 AND vo.value = $3`
)

var _ product.Ledger = (*StockLedger)(nil)

// StockLedger implements product.Ledger backed by PostgreSQL.
type StockLedger struct {
	pool *pgxpool.Pool
}

// NewStockLedger returns a StockLedger that uses the given pool.
func NewStockLedger(pool *pgxpool.Pool) *StockLedger {
	return &StockLedger{pool: pool}
}

// Reserve decrements available stock for the product, or for the selected
// option when sel is set. It fails with product.ErrInsufficientStock when
// the floor check rejects the decrement.
func (l *StockLedger) Reserve(ctx context.Context, productID string, sel *product.Selection, qty int64) error {
	q := db(ctx, l.pool)

	if sel == nil {
		tag, err := q.Exec(ctx, reserveBaseStockSQL, productID, qty)
		if err != nil {
			return fmt.Errorf("reserving %d of product %q: %w", qty, productID, err)
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(product.ErrInsufficientStock, "product %s", productID)
		}
		return nil
	}

	tag, err := q.Exec(ctx, reserveOptionStockSQL, productID, sel.Name, sel.Value, qty)
	if err != nil {
		return fmt.Errorf("reserving %d of product %q option %s=%s: %w", qty, productID, sel.Name, sel.Value, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(product.ErrInsufficientStock, "product %s option %s=%s", productID, sel.Name, sel.Value)
	}
	return nil
}

// Release returns previously reserved units. Releasing against an option
// with untracked stock leaves it untracked.
func (l *StockLedger) Release(ctx context.Context, productID string, sel *product.Selection, qty int64) error {
	q := db(ctx, l.pool)

	if sel == nil {
		tag, err := q.Exec(ctx, releaseBaseStockSQL, productID, qty)
		if err != nil {
			return fmt.Errorf("releasing %d of product %q: %w", qty, productID, err)
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(product.ErrNotFound, "product %s", productID)
		}
		return nil
	}

	tag, err := q.Exec(ctx, releaseOptionStockSQL, productID, sel.Name, sel.Value, qty)
	if err != nil {
		return fmt.Errorf("releasing %d of product %q option %s=%s: %w", qty, productID, sel.Name, sel.Value, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(product.ErrNotFound, "product %s option %s=%s", productID, sel.Name, sel.Value)
	}
	return nil
}
