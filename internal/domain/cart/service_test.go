package cart

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herafy/marketplace/internal/domain/coupon"
	"github.com/herafy/marketplace/internal/domain/product"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// nopTx runs fn directly; the in-memory fakes below need no transaction.
type nopTx struct{}

func (nopTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memCarts struct {
	byUser map[string]*Cart
}

func newMemCarts() *memCarts { return &memCarts{byUser: map[string]*Cart{}} }

func (m *memCarts) Get(_ context.Context, userID string) (*Cart, error) {
	c, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp, nil
}

func (m *memCarts) GetForUpdate(ctx context.Context, userID string) (*Cart, error) {
	return m.Get(ctx, userID)
}

func (m *memCarts) Upsert(_ context.Context, c *Cart) error {
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	m.byUser[c.UserID] = &cp
	return nil
}

func (m *memCarts) Delete(_ context.Context, id string) error {
	for user, c := range m.byUser {
		if c.ID == id {
			delete(m.byUser, user)
		}
	}
	return nil
}

type memProducts struct {
	byID map[string]*product.Product
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

// memLedger tracks available units per product/selection key.
type memLedger struct {
	avail map[string]int64
}

func ledgerKey(productID string, sel *product.Selection) string {
	if sel == nil {
		return productID
	}
	return fmt.Sprintf("%s/%s=%s", productID, sel.Name, sel.Value)
}

func (m *memLedger) Reserve(_ context.Context, productID string, sel *product.Selection, qty int64) error {
	k := ledgerKey(productID, sel)
	if m.avail[k] < qty {
		return product.ErrInsufficientStock
	}
	m.avail[k] -= qty
	return nil
}

func (m *memLedger) Release(_ context.Context, productID string, sel *product.Selection, qty int64) error {
	m.avail[ledgerKey(productID, sel)] += qty
	return nil
}

type memCoupons struct {
	byCode   map[string]*coupon.Coupon
	redeemed map[string]bool // code/userID
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (m *memCoupons) HasRedeemed(_ context.Context, code, userID string) (bool, error) {
	return m.redeemed[code+"/"+userID], nil
}

func (m *memCoupons) MarkRedeemed(_ context.Context, code, userID string) error {
	m.redeemed[code+"/"+userID] = true
	return nil
}

func (m *memCoupons) UnmarkRedeemed(_ context.Context, code, userID string) error {
	delete(m.redeemed, code+"/"+userID)
	return nil
}

type fixture struct {
	svc     *Service
	carts   *memCarts
	ledger  *memLedger
	coupons *memCoupons
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &memProducts{byID: map[string]*product.Product{
		"mug": {
			ID:        "mug",
			StoreID:   "store-1",
			Name:      "Ceramic Mug",
			BasePrice: d("20"),
			Category:  "pottery",
			Stock:     10,
		},
		"lamp": {
			ID:            "lamp",
			StoreID:       "store-2",
			Name:          "Brass Lamp",
			BasePrice:     d("100"),
			DiscountPrice: d("80"),
			DiscountStart: tp(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
			DiscountEnd:   tp(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)),
			Category:      "lighting",
			Stock:         4,
		},
		"rug": {
			ID:        "rug",
			StoreID:   "store-2",
			Name:      "Wool Rug",
			BasePrice: d("150"),
			Category:  "textiles",
			Variants: []product.Variant{
				{
					ID:   "v-size",
					Name: "Size",
					Options: []product.Option{
						{ID: "o-s", Value: "Small", PriceModifier: d("0"), Stock: product.Tracked(5), SKU: "RUG-S"},
						{ID: "o-l", Value: "Large", PriceModifier: d("50"), Stock: product.Tracked(2), SKU: "RUG-L"},
					},
				},
			},
		},
	}}

	ledger := &memLedger{avail: map[string]int64{
		"mug":            10,
		"lamp":           4,
		"rug/Size=Small": 5,
		"rug/Size=Large": 2,
	}}

	coupons := &memCoupons{
		byCode: map[string]*coupon.Coupon{
			"SAVE10": {
				Code:       "SAVE10",
				Type:       coupon.TypePercentage,
				Value:      d("10"),
				ExpiryDate: time.Now().Add(24 * time.Hour),
				Active:     true,
			},
			"BIG50": {
				Code:         "BIG50",
				Type:         coupon.TypeFixed,
				Value:        d("50"),
				MinCartTotal: d("150"),
				ExpiryDate:   time.Now().Add(24 * time.Hour),
				Active:       true,
			},
			"DOORBUSTER": {
				Code:       "DOORBUSTER",
				Type:       coupon.TypePercentage,
				Value:      d("150"),
				ExpiryDate: time.Now().Add(24 * time.Hour),
				Active:     true,
			},
		},
		redeemed: map[string]bool{},
	}

	carts := newMemCarts()
	svc := NewService(carts, products, ledger, coupon.NewEvaluator(coupons), coupons, nopTx{})
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	return &fixture{svc: svc, carts: carts, ledger: ledger, coupons: coupons}
}

func tp(t time.Time) *time.Time { return &t }

func TestService_GetEmptyCart(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Empty(t, c.Items)
	assert.True(t, c.Total.IsZero())

	// Reading must not persist anything.
	assert.Empty(t, f.carts.byUser)
}

func TestService_AddItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.True(t, d("40").Equal(c.Total), "got %s", c.Total)
	assert.Equal(t, int64(8), f.ledger.avail["mug"])

	// Same product merges into the existing line.
	c, err = f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(3), c.Items[0].Quantity)
	assert.Equal(t, int64(7), f.ledger.avail["mug"])

	// Different variant selection is its own line.
	c, err = f.svc.AddItem(ctx, "u1", ItemInput{
		ProductID: "rug", Quantity: 1,
		Variant: &product.Selection{Name: "Size", Value: "Large"},
	})
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.True(t, d("260").Equal(c.Total), "got %s", c.Total) // 3*20 + 200
}

func TestService_AddItemDiscountWindowPricing(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.AddItem(context.Background(), "u1", ItemInput{ProductID: "lamp", Quantity: 1})
	require.NoError(t, err)
	assert.True(t, d("80").Equal(c.Items[0].Price), "got %s", c.Items[0].Price)
}

func TestService_AddItemInsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "lamp", Quantity: 3})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, "u2", ItemInput{ProductID: "lamp", Quantity: 2})
	require.ErrorIs(t, err, product.ErrInsufficientStock)

	// The failed add must not leak a partial reservation.
	assert.Equal(t, int64(1), f.ledger.avail["lamp"])
}

func TestService_AddItemRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "ghost", Quantity: 1})
	require.ErrorIs(t, err, product.ErrNotFound)

	_, err = f.svc.AddItem(ctx, "u1", ItemInput{
		ProductID: "mug", Quantity: 1,
		Variant: &product.Selection{Name: "Color", Value: "Red"},
	})
	require.ErrorIs(t, err, product.ErrInvalidSelection)
}

func TestService_SetItemsAdjustsByDelta(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.SetItems(ctx, "u1", []ItemInput{
		{ProductID: "mug", Quantity: 4},
		{ProductID: "lamp", Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), f.ledger.avail["mug"])
	assert.Equal(t, int64(2), f.ledger.avail["lamp"])

	// Shrink one line, drop the other, add a third.
	c, err := f.svc.SetItems(ctx, "u1", []ItemInput{
		{ProductID: "mug", Quantity: 1},
		{ProductID: "rug", Quantity: 1, Variant: &product.Selection{Name: "Size", Value: "Small"}},
	})
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(9), f.ledger.avail["mug"])
	assert.Equal(t, int64(4), f.ledger.avail["lamp"])
	assert.Equal(t, int64(4), f.ledger.avail["rug/Size=Small"])
	assert.True(t, d("170").Equal(c.Total), "got %s", c.Total)
}

func TestService_RemoveItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 3})
	require.NoError(t, err)

	c, err := f.svc.RemoveItem(ctx, "u1", "mug", nil)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.Total.IsZero())
	assert.Equal(t, int64(10), f.ledger.avail["mug"])

	_, err = f.svc.RemoveItem(ctx, "u1", "mug", nil)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestService_ApplyCoupon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 5})
	require.NoError(t, err)

	c, err := f.svc.ApplyCoupon(ctx, "u1", "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", c.CouponCode)
	assert.True(t, d("100").Equal(c.Total), "got %s", c.Total)
	assert.True(t, d("10").Equal(c.Discount), "got %s", c.Discount)
	assert.True(t, d("90").Equal(c.TotalAfterDiscount), "got %s", c.TotalAfterDiscount)
	assert.True(t, f.coupons.redeemed["SAVE10/u1"])
}

func TestService_ApplyCouponNeverExceedsTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 1})
	require.NoError(t, err)

	// A discount larger than the cart is capped at the cart total, so the
	// payable amount bottoms out at zero instead of going negative.
	c, err := f.svc.ApplyCoupon(ctx, "u1", "DOORBUSTER")
	require.NoError(t, err)
	assert.True(t, d("20").Equal(c.Total), "got %s", c.Total)
	assert.True(t, d("20").Equal(c.Discount), "got %s", c.Discount)
	assert.True(t, c.TotalAfterDiscount.IsZero(), "got %s", c.TotalAfterDiscount)
	assert.False(t, c.TotalAfterDiscount.IsNegative())
}

func TestService_ApplyCouponBelowMinimum(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 2})
	require.NoError(t, err)

	_, err = f.svc.ApplyCoupon(ctx, "u1", "BIG50")
	require.ErrorIs(t, err, coupon.ErrBelowMinimum)
	assert.False(t, f.coupons.redeemed["BIG50/u1"])
}

func TestService_MutationInvalidatingCouponFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 10})
	require.NoError(t, err)
	_, err = f.svc.ApplyCoupon(ctx, "u1", "BIG50")
	require.NoError(t, err)

	// Shrinking the cart below the coupon minimum is refused; the coupon
	// must be removed first.
	_, err = f.svc.SetItems(ctx, "u1", []ItemInput{{ProductID: "mug", Quantity: 2}})
	require.ErrorIs(t, err, coupon.ErrBelowMinimum)
}

func TestService_RemoveCoupon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 10})
	require.NoError(t, err)
	_, err = f.svc.ApplyCoupon(ctx, "u1", "BIG50")
	require.NoError(t, err)

	c, err := f.svc.RemoveCoupon(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, c.CouponCode)
	assert.True(t, c.Discount.IsZero())
	assert.True(t, c.Total.Equal(c.TotalAfterDiscount))
	assert.False(t, f.coupons.redeemed["BIG50/u1"])

	// Released redemption can be used again.
	_, err = f.svc.ApplyCoupon(ctx, "u1", "BIG50")
	require.NoError(t, err)
}

func TestService_Clear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "u1", ItemInput{ProductID: "mug", Quantity: 10})
	require.NoError(t, err)
	_, err = f.svc.ApplyCoupon(ctx, "u1", "SAVE10")
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(ctx, "u1"))
	assert.Equal(t, int64(10), f.ledger.avail["mug"])
	assert.False(t, f.coupons.redeemed["SAVE10/u1"])
	assert.Empty(t, f.carts.byUser)

	// Clearing again is a no-op.
	require.NoError(t, f.svc.Clear(ctx, "u1"))
}
