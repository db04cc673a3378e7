package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type mockRepo struct {
	coupon   *Coupon
	findErr  error
	redeemed map[string]bool
}

func (m *mockRepo) FindByCode(_ context.Context, _ string) (*Coupon, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.coupon, nil
}

func (m *mockRepo) HasRedeemed(_ context.Context, _, userID string) (bool, error) {
	return m.redeemed[userID], nil
}

func (m *mockRepo) MarkRedeemed(_ context.Context, _, userID string) error {
	if m.redeemed == nil {
		m.redeemed = map[string]bool{}
	}
	m.redeemed[userID] = true
	return nil
}

func (m *mockRepo) UnmarkRedeemed(_ context.Context, _, userID string) error {
	delete(m.redeemed, userID)
	return nil
}

func TestEvaluator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	future := fixedNow.Add(30 * 24 * time.Hour)
	past := fixedNow.Add(-time.Hour)

	items := []Item{
		{ProductID: "p1", Category: "pottery", Price: d("50"), Quantity: 2},
		{ProductID: "p2", Category: "jewelry", Price: d("100"), Quantity: 1},
	}

	tests := []struct {
		name    string
		repo    *mockRepo
		userID  string
		total   decimal.Decimal
		wantErr error
	}{
		{
			name:  "valid coupon passes every check",
			repo:  &mockRepo{coupon: &Coupon{Code: "SAVE10", Type: TypePercentage, Value: d("10"), ExpiryDate: future, Active: true}},
			total: d("200"),
		},
		{
			name:    "unknown code",
			repo:    &mockRepo{findErr: ErrNotFound},
			total:   d("200"),
			wantErr: ErrNotFound,
		},
		{
			name:    "inactive coupon",
			repo:    &mockRepo{coupon: &Coupon{Code: "OFF", ExpiryDate: future, Active: false}},
			total:   d("200"),
			wantErr: ErrInactive,
		},
		{
			name:    "expired coupon",
			repo:    &mockRepo{coupon: &Coupon{Code: "OLD", ExpiryDate: past, Active: true}},
			total:   d("200"),
			wantErr: ErrExpired,
		},
		{
			name:    "usage limit reached",
			repo:    &mockRepo{coupon: &Coupon{Code: "LIM", ExpiryDate: future, Active: true, UsageLimit: 5, UsedCount: 5}},
			total:   d("200"),
			wantErr: ErrUsageLimit,
		},
		{
			name:  "zero usage limit means unlimited",
			repo:  &mockRepo{coupon: &Coupon{Code: "UNL", Type: TypeFixed, Value: d("5"), ExpiryDate: future, Active: true, UsedCount: 9999}},
			total: d("200"),
		},
		{
			name:    "cart total below minimum",
			repo:    &mockRepo{coupon: &Coupon{Code: "MIN", ExpiryDate: future, Active: true, MinCartTotal: d("300")}},
			total:   d("200"),
			wantErr: ErrBelowMinimum,
		},
		{
			name: "already redeemed by this user",
			repo: &mockRepo{
				coupon:   &Coupon{Code: "ONCE", ExpiryDate: future, Active: true},
				redeemed: map[string]bool{"u1": true},
			},
			userID:  "u1",
			total:   d("200"),
			wantErr: ErrAlreadyUsed,
		},
		{
			name: "redeemed by someone else is fine",
			repo: &mockRepo{
				coupon:   &Coupon{Code: "ONCE", Type: TypeFixed, Value: d("5"), ExpiryDate: future, Active: true},
				redeemed: map[string]bool{"u2": true},
			},
			userID: "u1",
			total:  d("200"),
		},
		{
			name:  "product scope matches a cart line",
			repo:  &mockRepo{coupon: &Coupon{Code: "P1", Type: TypeFixed, Value: d("5"), ExpiryDate: future, Active: true, ProductID: "p2"}},
			total: d("200"),
		},
		{
			name:    "product scope matches nothing",
			repo:    &mockRepo{coupon: &Coupon{Code: "PX", ExpiryDate: future, Active: true, ProductID: "p9"}},
			total:   d("200"),
			wantErr: ErrNotApplicable,
		},
		{
			name:  "category scope matches a cart line",
			repo:  &mockRepo{coupon: &Coupon{Code: "CAT", Type: TypeFixed, Value: d("5"), ExpiryDate: future, Active: true, Category: "jewelry"}},
			total: d("200"),
		},
		{
			name:    "category scope matches nothing",
			repo:    &mockRepo{coupon: &Coupon{Code: "CATX", ExpiryDate: future, Active: true, Category: "furniture"}},
			total:   d("200"),
			wantErr: ErrNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(tt.repo)
			e.now = func() time.Time { return fixedNow }

			got, err := e.Validate(context.Background(), "CODE", tt.userID, tt.total, items)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
		})
	}
}

func TestEvaluator_RevalidateSkipsRedemptionCheck(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		coupon:   &Coupon{Code: "MINE", Type: TypeFixed, Value: d("5"), ExpiryDate: fixedNow.Add(time.Hour), Active: true},
		redeemed: map[string]bool{"u1": true},
	}
	e := NewEvaluator(repo)
	e.now = func() time.Time { return fixedNow }

	// The user's own redemption must not invalidate the attached coupon.
	c, err := e.Revalidate(context.Background(), "MINE", d("100"), nil)
	require.NoError(t, err)
	assert.Equal(t, "MINE", c.Code)
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		name   string
		coupon *Coupon
		total  decimal.Decimal
		want   decimal.Decimal
	}{
		{
			name:   "fixed amount",
			coupon: &Coupon{Type: TypeFixed, Value: d("9")},
			total:  d("100"),
			want:   d("9"),
		},
		{
			name:   "fixed amount capped at cart total",
			coupon: &Coupon{Type: TypeFixed, Value: d("200")},
			total:  d("100"),
			want:   d("100"),
		},
		{
			name:   "percentage of total",
			coupon: &Coupon{Type: TypePercentage, Value: d("18")},
			total:  d("100"),
			want:   d("18"),
		},
		{
			name:   "percentage capped at max discount",
			coupon: &Coupon{Type: TypePercentage, Value: d("10"), MaxDiscount: d("15")},
			total:  d("200"),
			want:   d("15"),
		},
		{
			name:   "percentage under the cap",
			coupon: &Coupon{Type: TypePercentage, Value: d("10"), MaxDiscount: d("50")},
			total:  d("200"),
			want:   d("20"),
		},
		{
			name:   "percentage over 100 capped at cart total",
			coupon: &Coupon{Type: TypePercentage, Value: d("150")},
			total:  d("20"),
			want:   d("20"),
		},
		{
			name:   "percentage rounds to 2 dp",
			coupon: &Coupon{Type: TypePercentage, Value: d("33.33")},
			total:  d("10.01"),
			want:   d("3.34"), // 10.01 * 33.33 / 100 = 3.336333
		},
		{
			name:   "unknown type yields zero",
			coupon: &Coupon{Type: Type("bogus"), Value: d("10")},
			total:  d("100"),
			want:   d("0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Discount(tt.coupon, tt.total)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}
