// Package order holds the order aggregate and its lifecycle: creation from a
// flat item list, cancellation with stock and counter compensation, admin
// status advancement and payment outcome cascades.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrForbidden        = errors.New("order belongs to another user")
	ErrAlreadyCancelled = errors.New("order is already cancelled")
	ErrEmptyItems       = errors.New("order needs at least one item")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrItemNotFound     = errors.New("item not in order")
	ErrNotEditable      = errors.New("order can no longer be modified")
	ErrUnknownStatus    = errors.New("unknown order status")
)

// Order is a placed order. Item prices are snapshots taken at creation time
// and survive later catalog edits. CouponCode records the coupon that was
// applied when the order was placed, empty when none was. StoreDeletedAt
// marks a deletion audit stamp; the row itself is kept.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	ShippingAddress string
	CouponCode      string
	Status          Status
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	ShippingFee     decimal.Decimal
	TotalAmount     decimal.Decimal
	PaidAt          *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	StoreDeletedAt  *time.Time
	CreatedAt       time.Time
}

// Item is one order line with the product snapshot frozen at creation.
type Item struct {
	ID        string
	ProductID string
	StoreID   string
	Name      string
	Image     string
	Price     decimal.Decimal
	Quantity  int64
}

// Pricing holds the order totals knobs: tax is a flat rate on the subtotal,
// shipping is a flat fee waived at the free-shipping threshold.
type Pricing struct {
	TaxRate         decimal.Decimal
	FlatShippingFee decimal.Decimal
	FreeShippingAt  decimal.Decimal
}

// Repository persists orders with their items. GetForUpdate locks the order
// row for the surrounding transaction.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
}

// Counters adjusts the derived per-store and per-user order counters. Calls
// join the surrounding transaction so the counters never drift from the
// state change that caused them.
type Counters interface {
	AddStoreOrders(ctx context.Context, storeID string, delta int) error
	AddUserOrders(ctx context.Context, userID string, activeDelta, cancelledDelta int) error
}
