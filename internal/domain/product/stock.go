package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrInsufficientStock is returned when a reservation asks for more units
// than are currently available.
var ErrInsufficientStock = errors.New("insufficient stock")

// Stock is the availability of a product or variant option: either a tracked
// unit count or unlimited. The zero value is Tracked(0).
type Stock struct {
	unlimited bool
	units     int64
}

// Tracked returns a stock level with a finite unit count.
func Tracked(units int64) Stock {
	return Stock{units: units}
}

// Unlimited returns a stock level that never runs out.
func Unlimited() Stock {
	return Stock{unlimited: true}
}

// IsUnlimited reports whether the stock is untracked.
func (s Stock) IsUnlimited() bool { return s.unlimited }

// Units returns the tracked unit count. Meaningless for unlimited stock.
func (s Stock) Units() int64 { return s.units }

// CanCover reports whether qty units can be reserved.
func (s Stock) CanCover(qty int64) bool {
	return s.unlimited || s.units >= qty
}

// StockFor returns the stock that tracks availability for the given
// selection: the option's stock when the product has variants, the base
// stock otherwise. The selection rules match PriceAt.
func (p *Product) StockFor(sel *Selection) (Stock, error) {
	if !p.HasVariants() {
		if sel != nil {
			return Stock{}, errors.Wrapf(ErrInvalidSelection, "product %s has no variants", p.ID)
		}
		return Tracked(p.Stock), nil
	}
	if sel == nil {
		return Stock{}, errors.Wrapf(ErrInvalidSelection, "product %s requires a variant selection", p.ID)
	}
	opt, ok := p.findOption(*sel)
	if !ok {
		return Stock{}, errors.Wrapf(ErrInvalidSelection, "product %s has no option %s=%s", p.ID, sel.Name, sel.Value)
	}
	return opt.Stock, nil
}

// Ledger reserves and releases inventory units. Reserve fails with
// ErrInsufficientStock when the requested quantity exceeds what is tracked;
// both operations are atomic with respect to concurrent calls against the
// same product or option. Reserving against unlimited stock is a no-op.
type Ledger interface {
	Reserve(ctx context.Context, productID string, sel *Selection, qty int64) error
	Release(ctx context.Context, productID string, sel *Selection, qty int64) error
}
