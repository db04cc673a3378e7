package order

import "fmt"

// Status is the order lifecycle state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPaid          Status = "paid"
	StatusProcessing    Status = "processing"
	StatusShipped       Status = "shipped"
	StatusDelivered     Status = "delivered"
	StatusCancelled     Status = "cancelled"
	StatusPaymentFailed Status = "payment_failed"
	StatusRefunded      Status = "refunded"
)

// transitions is the full lifecycle table. The happy path runs pending to
// delivered; cancellation branches off before shipping, payment failure off
// any non-terminal state, refund off a completed or failed payment.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPaid:          true,
		StatusCancelled:     true,
		StatusPaymentFailed: true,
	},
	StatusPaid: {
		StatusProcessing:    true,
		StatusCancelled:     true,
		StatusPaymentFailed: true,
		StatusRefunded:      true,
	},
	StatusProcessing: {
		StatusShipped:       true,
		StatusCancelled:     true,
		StatusPaymentFailed: true,
	},
	StatusShipped: {
		StatusDelivered:     true,
		StatusPaymentFailed: true,
	},
	StatusPaymentFailed: {
		StatusPaid:      true,
		StatusCancelled: true,
		StatusRefunded:  true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
	StatusRefunded:  {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
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
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}
