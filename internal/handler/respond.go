package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/herafy/marketplace/internal/domain/cart"
	"github.com/herafy/marketplace/internal/domain/coupon"
	"github.com/herafy/marketplace/internal/domain/order"
	"github.com/herafy/marketplace/internal/domain/payment"
	"github.com/herafy/marketplace/internal/domain/product"
)

// envelope is the JSend response wrapper: "success" carries data, "fail"
// carries a client-error message, "error" a server-error message.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeSuccess(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Status: "success", Data: data})
}

func writeFail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Status: "fail", Message: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps a domain error to its HTTP status. Business-rule violations
// surface verbatim; anything unrecognized is an internal error and is logged
// rather than leaked.
func writeErr(ctx context.Context, w http.ResponseWriter, err error) {
	if code, ok := statusOf(err); ok {
		writeFail(w, code, err.Error())
		return
	}
	zctx.From(ctx).Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, envelope{
		Status:  "error",
		Message: "internal error",
	})
}

func statusOf(err error) (int, bool) {
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, payment.ErrNotFound):
		return http.StatusNotFound, true

	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, payment.ErrForbidden):
		return http.StatusForbidden, true

	case errors.Is(err, payment.ErrDuplicate):
		return http.StatusConflict, true

	case errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, product.ErrInvalidSelection),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrAlreadyCancelled),
		errors.Is(err, order.ErrNotEditable),
		errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, payment.ErrUnknownStatus),
		errors.Is(err, payment.ErrInvalidMethod),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimit),
		errors.Is(err, coupon.ErrBelowMinimum),
		errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrNotApplicable):
		return http.StatusBadRequest, true
	}

	var orderTr *order.InvalidTransitionError
	if errors.As(err, &orderTr) {
		return http.StatusBadRequest, true
	}
	var paymentTr *payment.InvalidTransitionError
	if errors.As(err, &paymentTr) {
		return http.StatusBadRequest, true
	}

	return 0, false
}

// decodeJSON reads the request body into dst, writing a 400 on malformed
// input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}
