package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/domain/product"
)

// TxRunner executes fn atomically. Repository calls made through the ctx
// passed to fn join the same transaction; any error rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ItemInput is one requested order line. Duplicate products in a request are
// merged by summing quantities before any stock is touched.
type ItemInput struct {
	ProductID string
	Quantity  int64
}

// Service runs the order pipeline. Every multi-step operation executes in a
// single transaction so stock decrements, counter updates and the order write
// apply together or not at all.
type Service struct {
	orders   Repository
	products product.Repository
	ledger   product.Ledger
	counters Counters
	tx       TxRunner
	pricing  Pricing
	now      func() time.Time
}

func NewService(
	orders Repository,
	products product.Repository,
	ledger product.Ledger,
	counters Counters,
	tx TxRunner,
	pricing Pricing,
) *Service {
	return &Service{
		orders:   orders,
		products: products,
		ledger:   ledger,
		counters: counters,
		tx:       tx,
		pricing:  pricing,
		now:      time.Now,
	}
}

// Create places an order for userID. Per merged line it loads the product,
// reserves the quantity against base stock and snapshots name, base price,
// image and owning store onto the order item. couponCode, when non-empty,
// records the coupon that produced the cart totals being checked out. Each
// distinct store referenced gains one on its order counter, the user one
// active order.
func (s *Service) Create(ctx context.Context, userID string, items []ItemInput, shippingAddress, couponCode string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	var out *Order
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		o := &Order{
			ID:              uuid.NewString(),
			UserID:          userID,
			ShippingAddress: shippingAddress,
			CouponCode:      couponCode,
			Status:          StatusPending,
			CreatedAt:       s.now(),
		}

		stores := make(map[string]struct{})
		for _, in := range merged {
			p, err := s.products.GetByID(ctx, in.ProductID)
			if err != nil {
				return err
			}
			if err := s.ledger.Reserve(ctx, in.ProductID, nil, in.Quantity); err != nil {
				return errors.Wrapf(err, "product %s", in.ProductID)
			}
			o.Items = append(o.Items, Item{
				ID:        uuid.NewString(),
				ProductID: p.ID,
				StoreID:   p.StoreID,
				Name:      p.Name,
				Image:     p.Image,
				Price:     p.BasePrice,
				Quantity:  in.Quantity,
			})
			stores[p.StoreID] = struct{}{}
		}

		s.computeTotals(o)
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		for storeID := range stores {
			if err := s.counters.AddStoreOrders(ctx, storeID, 1); err != nil {
				return err
			}
		}
		if err := s.counters.AddUserOrders(ctx, userID, 1, 0); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return out, nil
}

// GetByID returns the order without an ownership check. Collaborating
// services that enforce their own ownership rules use this.
func (s *Service) GetByID(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Get returns the order when userID owns it or admin is set.
func (s *Service) Get(ctx context.Context, id, userID string, admin bool) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

// Cancel cancels the user's own order, releasing stock and compensating the
// store and user counters. Cancelling twice fails with ErrAlreadyCancelled
// without touching stock again.
func (s *Service) Cancel(ctx context.Context, id, userID string) (*Order, error) {
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrForbidden
		}
		if err := s.cancelLocked(ctx, o); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}
	return out, nil
}

// UpdateStatus moves the order to a new status on admin's behalf, stamping
// the matching timestamp. A move to cancelled carries the full cancellation
// side effects.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "%q", to)
	}
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if to == StatusCancelled {
			if err := s.cancelLocked(ctx, o); err != nil {
				return err
			}
		} else {
			if !CanTransition(o.Status, to) {
				return &InvalidTransitionError{From: o.Status, To: to}
			}
			o.Status = to
			s.stamp(o, to)
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	return out, nil
}

// ApplyPaymentOutcome cascades a payment status change onto the order:
// completed marks it paid, refunded refunds it, failed marks the payment
// failure. It must run inside the payment update's transaction.
func (s *Service) ApplyPaymentOutcome(ctx context.Context, orderID string, to Status) error {
	o, err := s.orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}
	o.Status = to
	s.stamp(o, to)
	return s.orders.Update(ctx, o)
}

// Delete cancels the order where the lifecycle still allows it and stamps
// StoreDeletedAt; the row is kept for audit. Deletion is refused once the
// order has shipped.
func (s *Service) Delete(ctx context.Context, id, userID string, admin bool) (*Order, error) {
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !admin && o.UserID != userID {
			return ErrForbidden
		}
		switch o.Status {
		case StatusShipped, StatusDelivered:
			return &InvalidTransitionError{From: o.Status, To: StatusCancelled}
		case StatusPending, StatusPaid, StatusProcessing, StatusPaymentFailed:
			if err := s.cancelLocked(ctx, o); err != nil {
				return err
			}
		}
		now := s.now()
		o.StoreDeletedAt = &now
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "delete order")
	}
	return out, nil
}

// UpdateItem changes one line's quantity, adjusting stock by the delta,
// re-snapshotting the price from the current catalog and recomputing all
// order totals.
func (s *Service) UpdateItem(ctx context.Context, orderID, itemID string, quantity int64, userID string, admin bool) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !admin && o.UserID != userID {
			return ErrForbidden
		}
		switch o.Status {
		case StatusPending, StatusPaid, StatusProcessing:
		default:
			return errors.Wrapf(ErrNotEditable, "status %s", o.Status)
		}

		i := o.findItem(itemID)
		if i < 0 {
			return ErrItemNotFound
		}
		it := &o.Items[i]

		delta := quantity - it.Quantity
		switch {
		case delta > 0:
			if err := s.ledger.Reserve(ctx, it.ProductID, nil, delta); err != nil {
				return errors.Wrapf(err, "product %s", it.ProductID)
			}
		case delta < 0:
			if err := s.ledger.Release(ctx, it.ProductID, nil, -delta); err != nil {
				return err
			}
		}

		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return err
		}
		it.Price = p.BasePrice
		it.Quantity = quantity

		s.computeTotals(o)
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update order item")
	}
	return out, nil
}

// cancelLocked applies the cancellation side effects to an order already
// locked by the caller: stock release per line, store counters down, user
// active down and cancelled up.
func (s *Service) cancelLocked(ctx context.Context, o *Order) error {
	if o.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}

	stores := make(map[string]struct{})
	for _, it := range o.Items {
		if err := s.ledger.Release(ctx, it.ProductID, nil, it.Quantity); err != nil {
			return err
		}
		stores[it.StoreID] = struct{}{}
	}
	for storeID := range stores {
		if err := s.counters.AddStoreOrders(ctx, storeID, -1); err != nil {
			return err
		}
	}
	if err := s.counters.AddUserOrders(ctx, o.UserID, -1, 1); err != nil {
		return err
	}
	o.Status = StatusCancelled
	return nil
}

// stamp records the lifecycle timestamp matching the new status.
func (s *Service) stamp(o *Order, to Status) {
	now := s.now()
	switch to {
	case StatusPaid:
		o.PaidAt = &now
	case StatusShipped:
		o.ShippedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}
}

// computeTotals refreshes subtotal, tax, shipping fee and total from the
// current item snapshots. Shipping is waived at the free-shipping threshold.
func (s *Service) computeTotals(o *Order) {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	o.Subtotal = subtotal
	o.Tax = subtotal.Mul(s.pricing.TaxRate).Round(2)
	o.ShippingFee = s.pricing.FlatShippingFee
	if subtotal.GreaterThanOrEqual(s.pricing.FreeShippingAt) {
		o.ShippingFee = decimal.Zero
	}
	o.TotalAmount = o.Subtotal.Add(o.Tax).Add(o.ShippingFee)
}

func (o *Order) findItem(itemID string) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// mergeItems collapses duplicate product ids by summing quantities,
// preserving first-seen order.
func mergeItems(items []ItemInput) ([]ItemInput, error) {
	merged := make([]ItemInput, 0, len(items))
	index := make(map[string]int, len(items))
	for _, in := range items {
		if in.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %s", in.ProductID)
		}
		if i, ok := index[in.ProductID]; ok {
			merged[i].Quantity += in.Quantity
			continue
		}
		index[in.ProductID] = len(merged)
		merged = append(merged, in)
	}
	return merged, nil
}
