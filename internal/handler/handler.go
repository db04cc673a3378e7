// Package handler exposes the domain services over REST-ish JSON endpoints
// with a JSend response envelope. Authentication is a gateway concern: the
// caller identity arrives in X-User-ID and X-User-Role headers.
package handler

import (
	"net/http"

	"github.com/herafy/marketplace/internal/domain/cart"
	"github.com/herafy/marketplace/internal/domain/order"
	"github.com/herafy/marketplace/internal/domain/payment"
	"github.com/herafy/marketplace/internal/domain/product"
)

// Handler delegates HTTP requests to the domain services.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	payments *payment.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	payments *payment.Service,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		payments: payments,
	}
}

// Routes returns the full route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /products/{id}", h.getProduct)

	mux.HandleFunc("GET /cart", h.getCart)
	mux.HandleFunc("DELETE /cart", h.clearCart)
	mux.HandleFunc("POST /cart/items", h.addCartItem)
	mux.HandleFunc("PUT /cart/items", h.setCartItems)
	mux.HandleFunc("DELETE /cart/items/{productID}", h.removeCartItem)
	mux.HandleFunc("POST /cart/apply-coupon", h.applyCoupon)
	mux.HandleFunc("DELETE /cart/coupon", h.removeCoupon)

	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("DELETE /orders/{id}", h.deleteOrder)
	mux.HandleFunc("PATCH /orders/{id}/items/{itemID}", h.updateOrderItem)
	mux.HandleFunc("PATCH /orders/admin/{id}/status", h.updateOrderStatus)

	mux.HandleFunc("POST /payments", h.createPayment)
	mux.HandleFunc("GET /payments/{id}", h.getPayment)
	mux.HandleFunc("PATCH /payments/{id}/status", h.updatePaymentStatus)

	return mux
}

// identity is the caller as asserted by the gateway.
type identity struct {
	UserID string
	Admin  bool
}

// identityFrom extracts the gateway-asserted identity, writing a 401 when the
// user header is absent.
func identityFrom(w http.ResponseWriter, r *http.Request) (identity, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeFail(w, http.StatusUnauthorized, "missing user identity")
		return identity{}, false
	}
	return identity{
		UserID: userID,
		Admin:  r.Header.Get("X-User-Role") == "admin",
	}, true
}

// requireAdmin extracts the identity and rejects non-admin callers.
func requireAdmin(w http.ResponseWriter, r *http.Request) (identity, bool) {
	id, ok := identityFrom(w, r)
	if !ok {
		return identity{}, false
	}
	if !id.Admin {
		writeFail(w, http.StatusForbidden, "admin role required")
		return identity{}, false
	}
	return id, true
}
