package coupon

import (
	"time"

	"github.com/edmarket/coursepay/internal/coupon/domain"
)

// Discount computes the discount a coupon grants against a subtotal in
// minor units. A coupon that is inactive, expired as of now, or out of
// uses simply contributes nothing; checkout proceeds at full price. The
// result is clamped to [0, subtotal].
func Discount(c *domain.Coupon, subtotal int64, now time.Time) int64 {
	if c == nil || !c.IsActive {
		return 0
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return 0
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return 0
	}

	var discount int64
	switch c.DiscountType {
	case domain.DiscountPercentage:
		discount = subtotal * c.Value / 100
	case domain.DiscountFixed:
		discount = c.Value
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
