package coupon

import (
	"testing"
	"time"

	"github.com/edmarket/coursepay/internal/coupon/domain"
	"github.com/stretchr/testify/assert"
)

func int64p(v int64) *int64 { return &v }

func TestDiscount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Second)

	tests := []struct {
		name     string
		coupon   domain.Coupon
		subtotal int64
		want     int64
	}{
		{
			name: "percentage",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountPercentage,
				Value:        10,
				IsActive:     true,
			},
			subtotal: 10000,
			want:     1000,
		},
		{
			name: "percentage rounds down",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountPercentage,
				Value:        33,
				IsActive:     true,
			},
			subtotal: 101,
			want:     33,
		},
		{
			name: "hundred percent yields free order",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountPercentage,
				Value:        100,
				IsActive:     true,
			},
			subtotal: 14900,
			want:     14900,
		},
		{
			name: "fixed",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountFixed,
				Value:        5000,
				IsActive:     true,
			},
			subtotal: 14900,
			want:     5000,
		},
		{
			name: "fixed clamps to subtotal",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountFixed,
				Value:        20000,
				IsActive:     true,
			},
			subtotal: 14900,
			want:     14900,
		},
		{
			name: "inactive contributes nothing",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountFixed,
				Value:        5000,
				IsActive:     false,
			},
			subtotal: 14900,
			want:     0,
		},
		{
			name: "expired exactly at boundary contributes nothing",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountFixed,
				Value:        5000,
				IsActive:     true,
				ExpiresAt:    &now,
			},
			subtotal: 14900,
			want:     0,
		},
		{
			name: "expired in the past contributes nothing",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountPercentage,
				Value:        10,
				IsActive:     true,
				ExpiresAt:    &past,
			},
			subtotal: 14900,
			want:     0,
		},
		{
			name: "valid until the future",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountPercentage,
				Value:        10,
				IsActive:     true,
				ExpiresAt:    &future,
			},
			subtotal: 14900,
			want:     1490,
		},
		{
			name: "exhausted at max uses contributes nothing",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountPercentage,
				Value:        10,
				IsActive:     true,
				MaxUses:      int64p(5),
				UsedCount:    5,
			},
			subtotal: 14900,
			want:     0,
		},
		{
			name: "last use still allowed",
			coupon: domain.Coupon{
				DiscountType: domain.DiscountPercentage,
				Value:        10,
				IsActive:     true,
				MaxUses:      int64p(5),
				UsedCount:    4,
			},
			subtotal: 14900,
			want:     1490,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Discount(&tt.coupon, tt.subtotal, now))
		})
	}
}

func TestDiscountNilCoupon(t *testing.T) {
	assert.Zero(t, Discount(nil, 14900, time.Now()))
}
