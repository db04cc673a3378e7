package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/herafy/marketplace/internal/domain/order"
)

// TxRunner executes fn atomically. Repository calls made through the ctx
// passed to fn join the same transaction; any error rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Orders is the order-side surface the payment pipeline needs: owner and
// amount lookup plus the status cascade.
type Orders interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	ApplyPaymentOutcome(ctx context.Context, orderID string, outcome order.Status) error
}

// Service creates payments and applies status changes, cascading each
// outcome onto the linked order within the same transaction.
type Service struct {
	payments Repository
	orders   Orders
	tx       TxRunner
	now      func() time.Time
}

func NewService(payments Repository, orders Orders, tx TxRunner) *Service {
	return &Service{payments: payments, orders: orders, tx: tx, now: time.Now}
}

// Create opens a pending payment for the user's own order. The amount is
// copied from the order total. An order can carry at most one payment.
func (s *Service) Create(ctx context.Context, orderID, userID, method string) (*Payment, error) {
	if method == "" {
		return nil, ErrInvalidMethod
	}
	var out *Payment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrForbidden
		}

		switch _, err := s.payments.GetByOrderID(ctx, orderID); {
		case err == nil:
			return ErrDuplicate
		case !errors.Is(err, ErrNotFound):
			return err
		}

		p := &Payment{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			UserID:    userID,
			Method:    method,
			Amount:    o.TotalAmount,
			Status:    StatusPending,
			CreatedAt: s.now(),
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create payment")
	}
	return out, nil
}

// Get returns the payment when userID owns it or admin is set.
func (s *Service) Get(ctx context.Context, id, userID string, admin bool) (*Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && p.UserID != userID {
		return nil, ErrForbidden
	}
	return p, nil
}

// StatusUpdate is the provider's report accompanying a status change.
// TransactionID overwrites the stored reference only when set; ErrorMessage
// is recorded on a failed outcome and cleared on any other.
type StatusUpdate struct {
	Status        Status
	TransactionID string
	ErrorMessage  string
}

// UpdateStatus moves the payment to a new status and cascades the outcome
// onto the order: completed marks it paid, refunded refunds it, failed marks
// the payment failure. Both writes commit together.
func (s *Service) UpdateStatus(ctx context.Context, id string, up StatusUpdate) (*Payment, error) {
	to := up.Status
	if !to.Valid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "%q", to)
	}
	var out *Payment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(p.Status, to) {
			return &InvalidTransitionError{From: p.Status, To: to}
		}
		p.Status = to
		if up.TransactionID != "" {
			p.TransactionID = up.TransactionID
		}
		if to == StatusFailed {
			p.ErrorMessage = up.ErrorMessage
		} else {
			p.ErrorMessage = ""
		}
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}

		switch to {
		case StatusCompleted:
			err = s.orders.ApplyPaymentOutcome(ctx, p.OrderID, order.StatusPaid)
		case StatusRefunded:
			err = s.orders.ApplyPaymentOutcome(ctx, p.OrderID, order.StatusRefunded)
		case StatusFailed:
			err = s.orders.ApplyPaymentOutcome(ctx, p.OrderID, order.StatusPaymentFailed)
		}
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update payment status")
	}
	return out, nil
}
