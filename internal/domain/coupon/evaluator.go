package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluator validates coupons against a cart and computes discounts.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Validate runs the full check chain for a first-time application of code by
// userID, short-circuiting on the first failure: existence, active flag,
// expiry, usage limit, cart minimum, prior redemption, item scope.
func (e *Evaluator) Validate(ctx context.Context, code, userID string, cartTotal decimal.Decimal, items []Item) (*Coupon, error) {
	c, err := e.lookup(ctx, code, cartTotal, items)
	if err != nil {
		return nil, err
	}

	redeemed, err := e.repo.HasRedeemed(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	if redeemed {
		return nil, ErrAlreadyUsed
	}

	if err := checkScope(c, items); err != nil {
		return nil, err
	}
	return c, nil
}

// Revalidate re-checks a coupon already attached to a cart after the cart
// changed. It runs the same chain as Validate minus the prior-redemption
// check, which would otherwise trip over the cart's own redemption.
func (e *Evaluator) Revalidate(ctx context.Context, code string, cartTotal decimal.Decimal, items []Item) (*Coupon, error) {
	c, err := e.lookup(ctx, code, cartTotal, items)
	if err != nil {
		return nil, err
	}
	if err := checkScope(c, items); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Evaluator) lookup(ctx context.Context, code string, cartTotal decimal.Decimal, items []Item) (*Coupon, error) {
	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !c.Active {
		return nil, ErrInactive
	}
	if c.ExpiryDate.Before(e.now()) {
		return nil, ErrExpired
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return nil, ErrUsageLimit
	}
	if cartTotal.LessThan(c.MinCartTotal) {
		return nil, ErrBelowMinimum
	}
	return c, nil
}

// checkScope enforces product/category scoping: a scoped coupon needs at
// least one matching cart line.
func checkScope(c *Coupon, items []Item) error {
	if c.ProductID == "" && c.Category == "" {
		return nil
	}
	for _, it := range items {
		if c.ProductID != "" && it.ProductID == c.ProductID {
			return nil
		}
		if c.Category != "" && it.Category == c.Category {
			return nil
		}
	}
	return ErrNotApplicable
}

// Discount computes the discount amount for a validated coupon against the
// cart total. Percentage coupons are capped at MaxDiscount when set; both
// types are capped at the cart total itself, so the payable amount never goes
// negative. The result is rounded to 2 decimal places and never negative.
func Discount(c *Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Type {
	case TypeFixed:
		amount = c.Value
	case TypePercentage:
		amount = cartTotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount)
		}
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, cartTotal).Round(2)
}
