// Package cart holds the per-user shopping cart aggregate and the service
// that mutates it: item management, coupon attachment, and total recomputation.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/domain/product"
)

var (
	ErrNotFound        = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not in cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Cart is a user's pending selection of items. Total, Discount and
// TotalAfterDiscount are recomputed from current product prices on every
// mutation, never carried forward.
type Cart struct {
	ID                 string
	UserID             string
	Items              []Item
	CouponCode         string
	Total              decimal.Decimal
	Discount           decimal.Decimal
	TotalAfterDiscount decimal.Decimal
}

// Item is one cart line. Variant is nil for products without variants. Price
// is the effective unit price as of the last recomputation.
type Item struct {
	ProductID string
	Quantity  int64
	Variant   *product.Selection
	Price     decimal.Decimal
}

// lineKey identifies a cart line: same product and same variant selection
// merge into one line.
type lineKey struct {
	productID string
	variant   string
	value     string
}

func keyOf(productID string, sel *product.Selection) lineKey {
	k := lineKey{productID: productID}
	if sel != nil {
		k.variant = sel.Name
		k.value = sel.Value
	}
	return k
}

// find returns the index of the line matching key, or -1.
func (c *Cart) find(key lineKey) int {
	for i := range c.Items {
		if keyOf(c.Items[i].ProductID, c.Items[i].Variant) == key {
			return i
		}
	}
	return -1
}

// addQuantity merges qty into an existing line or appends a new one.
func (c *Cart) addQuantity(productID string, sel *product.Selection, qty int64) {
	if i := c.find(keyOf(productID, sel)); i >= 0 {
		c.Items[i].Quantity += qty
		return
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty, Variant: sel})
}

// removeLine deletes the line at index i preserving order.
func (c *Cart) removeLine(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Repository persists carts keyed by owner. Get and GetForUpdate return
// ErrNotFound when the user has no cart; GetForUpdate additionally locks the
// cart row for the duration of the surrounding transaction, serializing
// concurrent mutations of the same cart.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	GetForUpdate(ctx context.Context, userID string) (*Cart, error)
	Upsert(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id string) error
}
