package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusPaid},
		{StatusPaid, StatusProcessing},
		{StatusProcessing, StatusShipped},
		{StatusShipped, StatusDelivered},
		{StatusPending, StatusCancelled},
		{StatusPaid, StatusCancelled},
		{StatusProcessing, StatusCancelled},
		{StatusPending, StatusPaymentFailed},
		{StatusShipped, StatusPaymentFailed},
		{StatusPaid, StatusRefunded},
		{StatusPaymentFailed, StatusRefunded},
		{StatusPaymentFailed, StatusPaid},
		{StatusPaymentFailed, StatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s should be allowed", tr.from, tr.to)
	}

	forbidden := []struct{ from, to Status }{
		{StatusPending, StatusShipped},
		{StatusPending, StatusDelivered},
		{StatusShipped, StatusCancelled},
		{StatusDelivered, StatusCancelled},
		{StatusCancelled, StatusPending},
		{StatusRefunded, StatusPaid},
		{StatusDelivered, StatusPaymentFailed},
		{StatusPaid, StatusPending},
	}
	for _, tr := range forbidden {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s should be forbidden", tr.from, tr.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusCancelled, StatusRefunded} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []Status{StatusPending, StatusPaid, StatusProcessing, StatusShipped, StatusPaymentFailed} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusProcessing.Valid())
	assert.False(t, Status("archived").Valid())
}
