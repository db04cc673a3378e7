package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/domain/cart"
	"github.com/herafy/marketplace/internal/domain/product"
)

type cartItemReq struct {
	ProductID string             `json:"productId"`
	Quantity  int64              `json:"quantity"`
	Variant   *product.Selection `json:"variant,omitempty"`
}

type cartResp struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"userId"`
	Items              []cartItemResp  `json:"items"`
	CouponCode         string          `json:"couponCode,omitempty"`
	Total              decimal.Decimal `json:"total"`
	Discount           decimal.Decimal `json:"discount"`
	TotalAfterDiscount decimal.Decimal `json:"totalAfterDiscount"`
}

type cartItemResp struct {
	ProductID string             `json:"productId"`
	Quantity  int64              `json:"quantity"`
	Variant   *product.Selection `json:"variant,omitempty"`
	Price     decimal.Decimal    `json:"price"`
}

func toCartResp(c *cart.Cart) cartResp {
	items := make([]cartItemResp, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemResp{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Variant:   it.Variant,
			Price:     it.Price,
		}
	}
	return cartResp{
		ID:                 c.ID,
		UserID:             c.UserID,
		Items:              items,
		CouponCode:         c.CouponCode,
		Total:              c.Total,
		Discount:           c.Discount,
		TotalAfterDiscount: c.TotalAfterDiscount,
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	c, err := h.carts.Get(r.Context(), id.UserID)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toCartResp(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(r.Context(), id.UserID); err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var req cartItemReq
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.carts.AddItem(r.Context(), id.UserID, cart.ItemInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Variant:   req.Variant,
	})
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toCartResp(c))
}

func (h *Handler) setCartItems(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		Items []cartItemReq `json:"items"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ins := make([]cart.ItemInput, len(req.Items))
	for i, it := range req.Items {
		ins[i] = cart.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, Variant: it.Variant}
	}
	c, err := h.carts.SetItems(r.Context(), id.UserID, ins)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toCartResp(c))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	// The variant selector rides in an optional body; products without
	// variants need none.
	var req struct {
		Variant *product.Selection `json:"variant,omitempty"`
	}
	if r.Body != nil && r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.carts.RemoveItem(r.Context(), id.UserID, r.PathValue("productID"), req.Variant)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toCartResp(c))
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.carts.ApplyCoupon(r.Context(), id.UserID, req.Code)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toCartResp(c))
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	c, err := h.carts.RemoveCoupon(r.Context(), id.UserID)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toCartResp(c))
}
