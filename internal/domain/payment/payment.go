// Package payment links at most one payment to an order and cascades payment
// outcomes onto the order lifecycle.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("payment not found")
	ErrDuplicate     = errors.New("order already has a payment")
	ErrForbidden     = errors.New("order belongs to another user")
	ErrInvalidMethod = errors.New("payment method required")
	ErrUnknownStatus = errors.New("unknown payment status")
)

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// transitions allows retrying a failed payment but never reopening a
// completed or refunded one.
var transitions = map[Status]map[Status]bool{
	StatusPending:   {StatusCompleted: true, StatusFailed: true},
	StatusFailed:    {StatusPending: true, StatusCompleted: true},
	StatusCompleted: {StatusRefunded: true},
	StatusRefunded:  {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// InvalidTransitionError reports an attempted move the lifecycle forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition payment from %s to %s", e.From, e.To)
}

// Payment records one payment attempt for an order. Amount is always copied
// from the order total, never supplied by the caller. TransactionID holds the
// provider's reference once one is reported; ErrorMessage holds the provider
// failure reason while the payment sits in failed.
type Payment struct {
	ID            string
	OrderID       string
	UserID        string
	Method        string
	Amount        decimal.Decimal
	Status        Status
	TransactionID string
	ErrorMessage  string
	CreatedAt     time.Time
}

// Repository persists payments. GetByOrderID backs the one-payment-per-order
// rule; the storage layer additionally enforces it with a unique constraint.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetForUpdate(ctx context.Context, id string) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	Create(ctx context.Context, p *Payment) error
	Update(ctx context.Context, p *Payment) error
}
