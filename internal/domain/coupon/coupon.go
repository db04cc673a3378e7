// Package coupon holds coupon rules, the ordered validation chain, and
// discount computation.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypeFixed subtracts a fixed amount, capped at the cart total.
	TypeFixed Type = "fixed"
	// TypePercentage subtracts a percentage of the cart total, capped at
	// MaxDiscount when one is set.
	TypePercentage Type = "percentage"
)

// Validation errors, in the order the checks run.
var (
	ErrNotFound      = errors.New("coupon not found")
	ErrInactive      = errors.New("coupon is not active")
	ErrExpired       = errors.New("coupon has expired")
	ErrUsageLimit    = errors.New("coupon usage limit reached")
	ErrBelowMinimum  = errors.New("cart total below coupon minimum")
	ErrAlreadyUsed   = errors.New("coupon already used by this user")
	ErrNotApplicable = errors.New("coupon does not apply to any item in the cart")
)

// Coupon is a discount rule addressed by its unique code. ProductID and
// Category optionally scope the coupon to carts containing a matching item.
type Coupon struct {
	Code         string
	Type         Type
	Value        decimal.Decimal
	MinCartTotal decimal.Decimal
	MaxDiscount  decimal.Decimal // zero means uncapped
	ExpiryDate   time.Time
	UsageLimit   int
	UsedCount    int
	Active       bool
	ProductID    string
	Category     string
}

// Item is a cart line as seen by the evaluator.
type Item struct {
	ProductID string
	Category  string
	Price     decimal.Decimal
	Quantity  int64
}

// Repository provides coupon lookup and per-user redemption tracking.
// Redemptions back the at-most-once-per-user rule; MarkRedeemed also bumps
// the global used counter and UnmarkRedeemed compensates it.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	HasRedeemed(ctx context.Context, code, userID string) (bool, error)
	MarkRedeemed(ctx context.Context, code, userID string) error
	UnmarkRedeemed(ctx context.Context, code, userID string) error
}
