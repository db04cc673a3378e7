package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/domain/order"
)

type orderItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type orderResp struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []orderItemResp `json:"items"`
	ShippingAddress string          `json:"shippingAddress"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Status          string          `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	ShippingFee     decimal.Decimal `json:"shippingFee"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type orderItemResp struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	StoreID   string          `json:"storeId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

func toOrderResp(o *order.Order) orderResp {
	items := make([]orderItemResp, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResp{
			ID:        it.ID,
			ProductID: it.ProductID,
			StoreID:   it.StoreID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price,
			Quantity:  it.Quantity,
		}
	}
	return orderResp{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		CouponCode:      o.CouponCode,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		ShippingFee:     o.ShippingFee,
		TotalAmount:     o.TotalAmount,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		Items           []orderItemReq `json:"orderItems"`
		ShippingAddress string         `json:"shippingAddress"`
		CouponCode      string         `json:"couponCode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	items := make([]order.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	o, err := h.orders.Create(r.Context(), id.UserID, items, req.ShippingAddress, req.CouponCode)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, toOrderResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), r.PathValue("id"), id.UserID, id.Admin)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"), id.UserID)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Delete(r.Context(), r.PathValue("id"), id.UserID, id.Admin)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) updateOrderItem(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		Quantity int64 `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateItem(r.Context(),
		r.PathValue("id"), r.PathValue("itemID"), req.Quantity, id.UserID, id.Admin)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toOrderResp(o))
}
