package product

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidSelection is returned when a variant selection is missing,
// superfluous, or names a variant or option the product does not have.
var ErrInvalidSelection = errors.New("invalid variant selection")

// Selection names one option of one variant, e.g. {Name: "Color", Value: "Red"}.
type Selection struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Quote is the result of pricing one unit of a product.
type Quote struct {
	UnitPrice decimal.Decimal
	SKU       string
}

// PriceAt computes the effective unit price of p for the given selection at
// time now. The discount price applies only inside its window; a variant
// option adds its price modifier on top. Products with variants require a
// selection, products without forbid one. PriceAt is pure: stock is checked
// separately by the Ledger.
func PriceAt(p *Product, sel *Selection, now time.Time) (Quote, error) {
	base := p.BasePrice
	if p.discountActiveAt(now) {
		base = p.DiscountPrice
	}

	if !p.HasVariants() {
		if sel != nil {
			return Quote{}, errors.Wrapf(ErrInvalidSelection, "product %s has no variants", p.ID)
		}
		return Quote{UnitPrice: base}, nil
	}

	if sel == nil {
		return Quote{}, errors.Wrapf(ErrInvalidSelection, "product %s requires a variant selection", p.ID)
	}
	opt, ok := p.findOption(*sel)
	if !ok {
		return Quote{}, errors.Wrapf(ErrInvalidSelection, "product %s has no option %s=%s", p.ID, sel.Name, sel.Value)
	}

	return Quote{
		UnitPrice: base.Add(opt.PriceModifier),
		SKU:       opt.SKU,
	}, nil
}

// discountActiveAt reports whether the discount price is set and now falls
// inside [DiscountStart, DiscountEnd].
func (p *Product) discountActiveAt(now time.Time) bool {
	if !p.DiscountPrice.IsPositive() || p.DiscountStart == nil || p.DiscountEnd == nil {
		return false
	}
	return !now.Before(*p.DiscountStart) && !now.After(*p.DiscountEnd)
}
