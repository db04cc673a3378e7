package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herafy/marketplace/internal/domain/product"
)

const (
	getProductByIDSQL = `SELECT id, store_id, name, base_price, discount_price, discount_start, discount_end,
		category, image, stock
		FROM products WHERE id = $1 AND is_deleted = FALSE`

	getProductVariantsSQL = `SELECT pv.id, pv.name, pv.is_deleted, vo.id, vo.value, vo.price_modifier, vo.stock, vo.sku
		FROM product_variants pv
		JOIN variant_options vo ON vo.variant_id = pv.id
		WHERE pv.product_id = $1
		ORDER BY pv.id, vo.id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a live product with its variants and options. Soft-deleted
// products report product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	q := db(ctx, r.pool)

	rows, err := q.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	if p.Variants, err = r.loadVariants(ctx, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) loadVariants(ctx context.Context, q querier, productID string) ([]product.Variant, error) {
	rows, err := q.Query(ctx, getProductVariantsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("getting variants of product %q: %w", productID, err)
	}
	defer rows.Close()

	var (
		variants []product.Variant
		index    = map[string]int{}
	)
	for rows.Next() {
		var (
			variantID, variantName string
			variantDeleted         bool
			opt                    product.Option
			units                  *int64
		)
		if err := rows.Scan(
			&variantID, &variantName, &variantDeleted,
			&opt.ID, &opt.Value, &opt.PriceModifier, &units, &opt.SKU,
		); err != nil {
			return nil, fmt.Errorf("scanning variant of product %q: %w", productID, err)
		}
		if units == nil {
			opt.Stock = product.Unlimited()
		} else {
			opt.Stock = product.Tracked(*units)
		}

		i, ok := index[variantID]
		if !ok {
			i = len(variants)
			index[variantID] = i
			variants = append(variants, product.Variant{
				ID:        variantID,
				Name:      variantName,
				IsDeleted: variantDeleted,
			})
		}
		variants[i].Options = append(variants[i].Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting variants of product %q: %w", productID, err)
	}
	return variants, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.StoreID, &p.Name, &p.BasePrice, &p.DiscountPrice,
		&p.DiscountStart, &p.DiscountEnd, &p.Category, &p.Image, &p.Stock,
	)
	return p, err
}
