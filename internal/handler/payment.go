package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/domain/payment"
)

type paymentResp struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	Method        string          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	ErrorMessage  string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toPaymentResp(p *payment.Payment) paymentResp {
	return paymentResp{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Method:        p.Method,
		Amount:        p.Amount,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		ErrorMessage:  p.ErrorMessage,
		CreatedAt:     p.CreatedAt,
	}
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		OrderID string `json:"order"`
		Method  string `json:"paymentMethod"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.payments.Create(r.Context(), req.OrderID, id.UserID, req.Method)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, toPaymentResp(p))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	p, err := h.payments.Get(r.Context(), r.PathValue("id"), id.UserID, id.Admin)
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toPaymentResp(p))
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req struct {
		Status        string `json:"status"`
		TransactionID string `json:"transactionId"`
		Error         string `json:"error"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.payments.UpdateStatus(r.Context(), r.PathValue("id"), payment.StatusUpdate{
		Status:        payment.Status(req.Status),
		TransactionID: req.TransactionID,
		ErrorMessage:  req.Error,
	})
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toPaymentResp(p))
}
