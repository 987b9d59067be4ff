package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Coupon value semantics depend on DiscountType: PERCENTAGE stores whole
// percent points (0..100), FIXED stores minor units (cents).
type Coupon struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Code         string       `json:"code" gorm:"type:text;not null;uniqueIndex:ux_coupons_code"`
	DiscountType DiscountType `json:"discount_type" gorm:"type:text;not null"`
	Value        int64        `json:"value" gorm:"not null"`
	MaxUses      *int64       `json:"max_uses"`
	UsedCount    int64        `json:"used_count" gorm:"not null;default:0"`
	ExpiresAt    *time.Time   `json:"expires_at"`
	IsActive     bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
}

func (Coupon) TableName() string { return "coupons" }

var ErrNotFound = errors.New("coupon_not_found")

type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// Redeem increments used_count iff the coupon still has uses left.
	// Returns false when the increment lost to concurrent redemptions.
	Redeem(tx *gorm.DB, id snowflake.ID) (bool, error)
}
