package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Course is the storefront read model consumed by checkout. Pricing is
// stored in minor units (cents) to keep every currency path integral.
type Course struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Title        string       `json:"title" gorm:"type:text;not null"`
	PriceAmount  int64        `json:"price_amount" gorm:"not null"`
	Currency     string       `json:"currency" gorm:"type:text;not null;default:BRL"`
	InstructorID snowflake.ID `json:"instructor_id" gorm:"not null;index"`
	IsPublished  bool         `json:"is_published" gorm:"not null;default:false"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (Course) TableName() string { return "courses" }

var ErrNotFound = errors.New("course_not_found")

type Repository interface {
	// FindPublishedByIDs returns only published courses among ids.
	FindPublishedByIDs(ctx context.Context, ids []snowflake.ID) ([]Course, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Course, error)
}
