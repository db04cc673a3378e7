package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herafy/marketplace/internal/domain/cart"
	"github.com/herafy/marketplace/internal/domain/coupon"
	"github.com/herafy/marketplace/internal/domain/order"
	"github.com/herafy/marketplace/internal/domain/payment"
	"github.com/herafy/marketplace/internal/domain/product"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type nopTx struct{}

func (nopTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
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

type memLedger struct {
	avail map[string]int64
}

func (m *memLedger) Reserve(_ context.Context, productID string, _ *product.Selection, qty int64) error {
	if m.avail[productID] < qty {
		return product.ErrInsufficientStock
	}
	m.avail[productID] -= qty
	return nil
}

func (m *memLedger) Release(_ context.Context, productID string, _ *product.Selection, qty int64) error {
	m.avail[productID] += qty
	return nil
}

type memCarts struct {
	byUser map[string]*cart.Cart
}

func (m *memCarts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := m.byUser[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (m *memCarts) GetForUpdate(ctx context.Context, userID string) (*cart.Cart, error) {
	return m.Get(ctx, userID)
}

func (m *memCarts) Upsert(_ context.Context, c *cart.Cart) error {
	m.byUser[c.UserID] = c
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

type memCoupons struct {
	byCode   map[string]*coupon.Coupon
	redeemed map[string]bool
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

type memOrders struct {
	byID map[string]*order.Order
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return m.GetByID(ctx, id)
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

func (m *memOrders) Update(ctx context.Context, o *order.Order) error {
	return m.Create(ctx, o)
}

type memCounters struct{}

func (memCounters) AddStoreOrders(context.Context, string, int) error     { return nil }
func (memCounters) AddUserOrders(context.Context, string, int, int) error { return nil }

type memPayments struct {
	byID map[string]*payment.Payment
}

func (m *memPayments) GetByID(_ context.Context, id string) (*payment.Payment, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return p, nil
}

func (m *memPayments) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	return m.GetByID(ctx, id)
}

func (m *memPayments) GetByOrderID(_ context.Context, orderID string) (*payment.Payment, error) {
	for _, p := range m.byID {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return nil, payment.ErrNotFound
}

func (m *memPayments) Create(_ context.Context, p *payment.Payment) error {
	m.byID[p.ID] = p
	return nil
}

func (m *memPayments) Update(ctx context.Context, p *payment.Payment) error {
	return m.Create(ctx, p)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	products := &memProducts{byID: map[string]*product.Product{
		"mug":  {ID: "mug", StoreID: "store-1", Name: "Ceramic Mug", BasePrice: d("20"), Category: "pottery", Stock: 5},
		"lamp": {ID: "lamp", StoreID: "store-2", Name: "Brass Lamp", BasePrice: d("100"), Stock: 2},
	}}
	ledger := &memLedger{avail: map[string]int64{"mug": 5, "lamp": 2}}
	coupons := &memCoupons{
		byCode: map[string]*coupon.Coupon{
			"BIG50": {
				Code: "BIG50", Type: coupon.TypeFixed, Value: d("50"),
				MinCartTotal: d("150"), ExpiryDate: time.Now().Add(time.Hour), Active: true,
			},
		},
		redeemed: map[string]bool{},
	}
	carts := &memCarts{byUser: map[string]*cart.Cart{}}
	orders := &memOrders{byID: map[string]*order.Order{}}
	payments := &memPayments{byID: map[string]*payment.Payment{}}

	cartSvc := cart.NewService(carts, products, ledger, coupon.NewEvaluator(coupons), coupons, nopTx{})
	orderSvc := order.NewService(orders, products, ledger, memCounters{}, nopTx{}, order.Pricing{
		TaxRate:         d("0.10"),
		FlatShippingFee: d("10"),
		FreeShippingAt:  d("500"),
	})
	paymentSvc := payment.NewService(payments, orderSvc, nopTx{})

	h := NewHandler(products, cartSvc, orderSvc, paymentSvc)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user, role, body string) (*http.Response, envelope) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestGetProduct(t *testing.T) {
	srv := newTestServer(t)

	resp, env := do(t, srv, http.MethodGet, "/products/mug", "", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", env.Status)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Ceramic Mug"`)

	resp, env = do(t, srv, http.MethodGet, "/products/ghost", "", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "fail", env.Status)
}

func TestCartRequiresIdentity(t *testing.T) {
	srv := newTestServer(t)

	resp, env := do(t, srv, http.MethodPost, "/cart/items", "", "",
		`{"productId":"mug","quantity":1}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "fail", env.Status)
}

func TestCartFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, env := do(t, srv, http.MethodPost, "/cart/items", "u1", "",
		`{"productId":"mug","quantity":2}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", env.Status)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total":"40"`)

	// A second request overflows the remaining stock.
	resp, env = do(t, srv, http.MethodPost, "/cart/items", "u2", "",
		`{"productId":"mug","quantity":4}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "fail", env.Status)
	assert.Contains(t, env.Message, "insufficient stock")

	// Coupon below its cart minimum.
	resp, env = do(t, srv, http.MethodPost, "/cart/apply-coupon", "u1", "",
		`{"code":"BIG50"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Message, "below coupon minimum")

	resp, _ = do(t, srv, http.MethodDelete, "/cart/items/mug", "u1", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOrderFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, env := do(t, srv, http.MethodPost, "/orders", "u1", "",
		`{"orderItems":[{"productId":"mug","quantity":2},{"productId":"lamp","quantity":1}],"shippingAddress":"12 Pottery Lane","couponCode":"SAVE10"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "success", env.Status)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var created struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		CouponCode  string `json:"couponCode"`
		TotalAmount string `json:"totalAmount"`
	}
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "SAVE10", created.CouponCode)
	// 140 subtotal + 14 tax + 10 shipping.
	assert.Equal(t, "164", created.TotalAmount)

	// Another user cannot read it.
	resp, _ = do(t, srv, http.MethodGet, "/orders/"+created.ID, "u2", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Status advance needs the admin role.
	resp, _ = do(t, srv, http.MethodPatch, "/orders/admin/"+created.ID+"/status", "u1", "",
		`{"status":"paid"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, st := range []string{"paid", "processing", "shipped"} {
		resp, _ = do(t, srv, http.MethodPatch, "/orders/admin/"+created.ID+"/status", "ops", "admin",
			`{"status":"`+st+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// Shipped orders cannot be cancelled.
	resp, env = do(t, srv, http.MethodPatch, "/orders/"+created.ID+"/cancel", "u1", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Message, "cannot transition")
}

func TestPaymentFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, env := do(t, srv, http.MethodPost, "/orders", "u1", "",
		`{"orderItems":[{"productId":"mug","quantity":1}],"shippingAddress":"addr"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &created))

	resp, env = do(t, srv, http.MethodPost, "/payments", "u1", "",
		`{"order":"`+created.ID+`","paymentMethod":"card"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data, err = json.Marshal(env.Data)
	require.NoError(t, err)
	var pay struct {
		ID     string `json:"id"`
		Amount string `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(data, &pay))
	// 20 + 2 tax + 10 shipping.
	assert.Equal(t, "32", pay.Amount)

	// One payment per order.
	resp, _ = do(t, srv, http.MethodPost, "/payments", "u1", "",
		`{"order":"`+created.ID+`","paymentMethod":"card"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Completing the payment marks the order paid and records the
	// provider's transaction reference.
	resp, env = do(t, srv, http.MethodPatch, "/payments/"+pay.ID+"/status", "ops", "admin",
		`{"status":"completed","transactionId":"txn-abc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err = json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"transactionId":"txn-abc"`)

	resp, env = do(t, srv, http.MethodGet, "/orders/"+created.ID, "u1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err = json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"paid"`)
}
