package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/domain/product"
)

type productResp struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"storeId"`
	Name          string          `json:"name"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	DiscountPrice decimal.Decimal `json:"discountPrice,omitempty"`
	DiscountStart *time.Time      `json:"discountStart,omitempty"`
	DiscountEnd   *time.Time      `json:"discountEnd,omitempty"`
	Category      string          `json:"category,omitempty"`
	Image         string          `json:"image,omitempty"`
	Stock         int64           `json:"stock"`
	Variants      []variantResp   `json:"variants,omitempty"`
}

type variantResp struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Options []optionResp `json:"options"`
}

type optionResp struct {
	ID            string          `json:"id"`
	Value         string          `json:"value"`
	PriceModifier decimal.Decimal `json:"priceModifier"`
	Stock         *int64          `json:"stock"` // null means unlimited
	SKU           string          `json:"sku,omitempty"`
}

func toProductResp(p *product.Product) productResp {
	resp := productResp{
		ID:            p.ID,
		StoreID:       p.StoreID,
		Name:          p.Name,
		BasePrice:     p.BasePrice,
		DiscountPrice: p.DiscountPrice,
		DiscountStart: p.DiscountStart,
		DiscountEnd:   p.DiscountEnd,
		Category:      p.Category,
		Image:         p.Image,
		Stock:         p.Stock,
	}
	for _, v := range p.Variants {
		if v.IsDeleted {
			continue
		}
		vr := variantResp{ID: v.ID, Name: v.Name}
		for _, o := range v.Options {
			or := optionResp{
				ID:            o.ID,
				Value:         o.Value,
				PriceModifier: o.PriceModifier,
				SKU:           o.SKU,
			}
			if !o.Stock.IsUnlimited() {
				units := o.Stock.Units()
				or.Stock = &units
			}
			vr.Options = append(vr.Options, or)
		}
		resp.Variants = append(resp.Variants, vr)
	}
	return resp
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(r.Context(), w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toProductResp(p))
}
