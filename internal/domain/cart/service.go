package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/domain/coupon"
	"github.com/herafy/marketplace/internal/domain/product"
)

// TxRunner executes fn atomically. Repository calls made through the ctx
// passed to fn join the same transaction; any error rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ItemInput describes one requested cart line.
type ItemInput struct {
	ProductID string
	Quantity  int64
	Variant   *product.Selection
}

// Service mutates carts. Every mutation runs in one transaction that locks
// the cart row, adjusts stock reservations by the delta against the previous
// contents, reprices every line and revalidates the attached coupon.
type Service struct {
	carts       Repository
	products    product.Repository
	ledger      product.Ledger
	coupons     *coupon.Evaluator
	redemptions coupon.Repository
	tx          TxRunner
	now         func() time.Time
}

func NewService(
	carts Repository,
	products product.Repository,
	ledger product.Ledger,
	coupons *coupon.Evaluator,
	redemptions coupon.Repository,
	tx TxRunner,
) *Service {
	return &Service{
		carts:       carts,
		products:    products,
		ledger:      ledger,
		coupons:     coupons,
		redemptions: redemptions,
		tx:          tx,
		now:         time.Now,
	}
}

// Get returns the user's cart. A user with no persisted cart gets an empty
// one; it is not stored until the first mutation.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		return newCart(userID), nil
	case err != nil:
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem reserves qty more units and merges them into the line with the same
// product and variant selection, creating the line if needed.
func (s *Service) AddItem(ctx context.Context, userID string, in ItemInput) (*Cart, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, userID, func(ctx context.Context, c *Cart) error {
		if err := s.reserve(ctx, in.ProductID, in.Variant, in.Quantity); err != nil {
			return err
		}
		c.addQuantity(in.ProductID, in.Variant, in.Quantity)
		return nil
	})
}

// SetItems replaces the cart contents. Stock is adjusted per line by the
// difference between the requested and the current quantity, so unchanged
// lines touch no inventory.
func (s *Service) SetItems(ctx context.Context, userID string, ins []ItemInput) (*Cart, error) {
	for _, in := range ins {
		if in.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	return s.mutate(ctx, userID, func(ctx context.Context, c *Cart) error {
		next := newCart(userID)
		next.ID, next.CouponCode = c.ID, c.CouponCode
		for _, in := range ins {
			next.addQuantity(in.ProductID, in.Variant, in.Quantity)
		}

		old := make(map[lineKey]int64, len(c.Items))
		for _, it := range c.Items {
			old[keyOf(it.ProductID, it.Variant)] = it.Quantity
		}
		for _, it := range next.Items {
			key := keyOf(it.ProductID, it.Variant)
			delta := it.Quantity - old[key]
			delete(old, key)
			switch {
			case delta > 0:
				if err := s.reserve(ctx, it.ProductID, it.Variant, delta); err != nil {
					return err
				}
			case delta < 0:
				if err := s.ledger.Release(ctx, it.ProductID, it.Variant, -delta); err != nil {
					return err
				}
			}
		}
		for key, qty := range old {
			sel := selOf(key)
			if err := s.ledger.Release(ctx, key.productID, sel, qty); err != nil {
				return err
			}
		}

		*c = *next
		return nil
	})
}

// RemoveItem drops the line matching product and selection and releases its
// reserved units.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string, sel *product.Selection) (*Cart, error) {
	return s.mutate(ctx, userID, func(ctx context.Context, c *Cart) error {
		i := c.find(keyOf(productID, sel))
		if i < 0 {
			return ErrItemNotFound
		}
		if err := s.ledger.Release(ctx, productID, sel, c.Items[i].Quantity); err != nil {
			return err
		}
		c.removeLine(i)
		return nil
	})
}

// ApplyCoupon validates code against the current cart and attaches it,
// recording the user's redemption in the same transaction. An already
// attached coupon is released first.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*Cart, error) {
	return s.mutate(ctx, userID, func(ctx context.Context, c *Cart) error {
		total, items, err := s.priceItems(ctx, c)
		if err != nil {
			return err
		}
		if _, err := s.coupons.Validate(ctx, code, userID, total, items); err != nil {
			return err
		}
		if c.CouponCode != "" && c.CouponCode != code {
			if err := s.redemptions.UnmarkRedeemed(ctx, c.CouponCode, userID); err != nil {
				return err
			}
		}
		if err := s.redemptions.MarkRedeemed(ctx, code, userID); err != nil {
			return err
		}
		c.CouponCode = code
		return nil
	})
}

// RemoveCoupon detaches the coupon and releases the user's redemption so the
// code can be applied again later.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*Cart, error) {
	return s.mutate(ctx, userID, func(ctx context.Context, c *Cart) error {
		if c.CouponCode == "" {
			return nil
		}
		if err := s.redemptions.UnmarkRedeemed(ctx, c.CouponCode, userID); err != nil {
			return err
		}
		c.CouponCode = ""
		return nil
	})
}

// Clear releases every reserved unit, releases the coupon redemption and
// deletes the cart. Clearing a nonexistent cart is a no-op.
func (s *Service) Clear(ctx context.Context, userID string) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.GetForUpdate(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, it := range c.Items {
			if err := s.ledger.Release(ctx, it.ProductID, it.Variant, it.Quantity); err != nil {
				return err
			}
		}
		if c.CouponCode != "" {
			if err := s.redemptions.UnmarkRedeemed(ctx, c.CouponCode, userID); err != nil {
				return err
			}
		}
		return s.carts.Delete(ctx, c.ID)
	})
	if err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// mutate loads the cart under a row lock, applies fn, recomputes totals and
// persists the result, all in one transaction.
func (s *Service) mutate(ctx context.Context, userID string, fn func(ctx context.Context, c *Cart) error) (*Cart, error) {
	var out *Cart
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.GetForUpdate(ctx, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			c = newCart(userID)
		case err != nil:
			return err
		}
		if err := fn(ctx, c); err != nil {
			return err
		}
		if err := s.recompute(ctx, c); err != nil {
			return err
		}
		if err := s.carts.Upsert(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "mutate cart")
	}
	return out, nil
}

// reserve validates the selection against the catalog before touching the
// ledger, so a bad selection surfaces as ErrInvalidSelection rather than a
// missing inventory row.
func (s *Service) reserve(ctx context.Context, productID string, sel *product.Selection, qty int64) error {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if _, err := p.StockFor(sel); err != nil {
		return err
	}
	return s.ledger.Reserve(ctx, productID, sel, qty)
}

// recompute reprices every line at current catalog prices, revalidates the
// attached coupon against the new contents and refreshes the three totals.
func (s *Service) recompute(ctx context.Context, c *Cart) error {
	total, items, err := s.priceItems(ctx, c)
	if err != nil {
		return err
	}
	c.Total = total
	c.Discount = decimal.Zero
	if c.CouponCode != "" {
		cp, err := s.coupons.Revalidate(ctx, c.CouponCode, total, items)
		if err != nil {
			return errors.Wrapf(err, "coupon %s", c.CouponCode)
		}
		c.Discount = coupon.Discount(cp, total)
	}
	c.TotalAfterDiscount = c.Total.Sub(c.Discount)
	return nil
}

func (s *Service) priceItems(ctx context.Context, c *Cart) (decimal.Decimal, []coupon.Item, error) {
	now := s.now()
	total := decimal.Zero
	items := make([]coupon.Item, 0, len(c.Items))
	for i := range c.Items {
		it := &c.Items[i]
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return decimal.Zero, nil, err
		}
		q, err := product.PriceAt(p, it.Variant, now)
		if err != nil {
			return decimal.Zero, nil, err
		}
		it.Price = q.UnitPrice
		total = total.Add(q.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
		items = append(items, coupon.Item{
			ProductID: p.ID,
			Category:  p.Category,
			Price:     q.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return total, items, nil
}

func newCart(userID string) *Cart {
	return &Cart{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Total:              decimal.Zero,
		Discount:           decimal.Zero,
		TotalAfterDiscount: decimal.Zero,
	}
}

func selOf(key lineKey) *product.Selection {
	if key.variant == "" && key.value == "" {
		return nil
	}
	return &product.Selection{Name: key.variant, Value: key.value}
}
