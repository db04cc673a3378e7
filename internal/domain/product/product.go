// Package product holds the catalog aggregate: products, their variants and
// options, tracked stock, and effective-price computation.
package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or has been
// soft-deleted.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item owned by a store. When Variants is empty
// the base Stock field tracks availability; otherwise each variant option
// tracks its own stock.
type Product struct {
	ID            string
	StoreID       string
	Name          string
	BasePrice     decimal.Decimal
	DiscountPrice decimal.Decimal
	DiscountStart *time.Time
	DiscountEnd   *time.Time
	Category      string
	Image         string
	Stock         int64
	Variants      []Variant
	IsDeleted     bool
}

// Variant is a named axis of differentiation (e.g. "Color") with a set of
// concrete options.
type Variant struct {
	ID        string
	Name      string
	IsDeleted bool
	Options   []Option
}

// Option is one concrete choice within a variant, carrying its own price
// modifier and stock.
type Option struct {
	ID            string
	Value         string
	PriceModifier decimal.Decimal
	Stock         Stock
	SKU           string
}

// HasVariants reports whether the product carries at least one live variant
// with options. Soft-deleted variants do not count.
func (p *Product) HasVariants() bool {
	for _, v := range p.Variants {
		if !v.IsDeleted && len(v.Options) > 0 {
			return true
		}
	}
	return false
}

// findOption locates the option matching the selection among live variants.
func (p *Product) findOption(sel Selection) (*Option, bool) {
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.IsDeleted || v.Name != sel.Name {
			continue
		}
		for j := range v.Options {
			if v.Options[j].Value == sel.Value {
				return &v.Options[j], true
			}
		}
	}
	return nil, false
}

// Repository defines read operations for the catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}
