package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// InstructorProfile carries the materialized payout balance in minor units.
// The balance only moves together with an instructor_credits row, so the
// ledger always explains the total.
type InstructorProfile struct {
	InstructorID snowflake.ID `json:"instructor_id" gorm:"primaryKey"`
	Balance      int64        `json:"balance" gorm:"not null;default:0"`
	Currency     string       `json:"currency" gorm:"type:text;not null;default:BRL"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (InstructorProfile) TableName() string { return "instructor_profiles" }

// InstructorCredit is one append-only ledger entry per paid order item.
type InstructorCredit struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	InstructorID snowflake.ID `json:"instructor_id" gorm:"not null;index"`
	OrderID      snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex:ux_instructor_credits_order_course"`
	CourseID     snowflake.ID `json:"course_id" gorm:"not null;uniqueIndex:ux_instructor_credits_order_course"`
	Amount       int64        `json:"amount" gorm:"not null"`
	PlatformFee  int64        `json:"platform_fee" gorm:"not null"`
	Currency     string       `json:"currency" gorm:"type:text;not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
}

func (InstructorCredit) TableName() string { return "instructor_credits" }

var ErrProfileNotFound = errors.New("instructor_profile_not_found")

type Repository interface {
	// CreditOnce writes the ledger entry and bumps the balance, but only if
	// no entry exists yet for the (order, course) pair. Returns true when
	// the credit was applied by this call.
	CreditOnce(tx *gorm.DB, credit *InstructorCredit) (bool, error)
	FindProfile(ctx context.Context, instructorID snowflake.ID) (*InstructorProfile, error)
	CreditsByInstructor(ctx context.Context, instructorID snowflake.ID) ([]InstructorCredit, error)
}
