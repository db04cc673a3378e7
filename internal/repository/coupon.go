package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herafy/marketplace/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, min_cart_total, max_discount,
		expiry_date, usage_limit, used_count, active, product_id, category
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	hasRedemptionSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_redemptions WHERE code = $1 AND user_id = $2)`

	insertRedemptionSQL = `INSERT INTO coupon_redemptions (code, user_id) VALUES ($1, $2)
		ON CONFLICT (code, user_id) DO NOTHING`

	deleteRedemptionSQL = `DELETE FROM coupon_redemptions WHERE code = $1 AND user_id = $2`

	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1 WHERE code = $1`

	decrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count - 1
		WHERE code = $1 AND used_count > 0`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive). Returns
// coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := db(ctx, r.pool).Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// HasRedeemed reports whether the user already redeemed the coupon.
func (r *CouponRepository) HasRedeemed(ctx context.Context, code, userID string) (bool, error) {
	var redeemed bool
	err := db(ctx, r.pool).QueryRow(ctx, hasRedemptionSQL, code, userID).Scan(&redeemed)
	if err != nil {
		return false, fmt.Errorf("checking redemption of coupon %q by user %q: %w", code, userID, err)
	}
	return redeemed, nil
}

// MarkRedeemed records the user's redemption and bumps the global usage
// counter.
func (r *CouponRepository) MarkRedeemed(ctx context.Context, code, userID string) error {
	q := db(ctx, r.pool)

	tag, err := q.Exec(ctx, insertRedemptionSQL, code, userID)
	if err != nil {
		return fmt.Errorf("recording redemption of coupon %q by user %q: %w", code, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrAlreadyUsed
	}
	if _, err := q.Exec(ctx, incrementCouponUsesSQL, code); err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	return nil
}

// UnmarkRedeemed compensates MarkRedeemed: drops the user's redemption and
// the matching usage count. Unmarking a coupon the user never redeemed is a
// no-op.
func (r *CouponRepository) UnmarkRedeemed(ctx context.Context, code, userID string) error {
	q := db(ctx, r.pool)

	tag, err := q.Exec(ctx, deleteRedemptionSQL, code, userID)
	if err != nil {
		return fmt.Errorf("releasing redemption of coupon %q by user %q: %w", code, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if _, err := q.Exec(ctx, decrementCouponUsesSQL, code); err != nil {
		return fmt.Errorf("decrementing uses for coupon %q: %w", code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.Code, &discountType, &c.Value, &c.MinCartTotal, &c.MaxDiscount,
		&c.ExpiryDate, &c.UsageLimit, &c.UsedCount, &c.Active, &c.ProductID, &c.Category,
	)
	c.Type = coupon.Type(discountType)
	return c, err
}
