package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Enrollment struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_enrollments_user_course"`
	CourseID  snowflake.ID `json:"course_id" gorm:"not null;uniqueIndex:ux_enrollments_user_course"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Enrollment) TableName() string { return "enrollments" }

type Repository interface {
	// CreateIfAbsent inserts the enrollment unless the (user, course) pair
	// already exists. Returns true when a row was inserted.
	CreateIfAbsent(tx *gorm.DB, e *Enrollment) (bool, error)
	// EnrolledAny reports the course ids among courseIDs the user already owns.
	EnrolledAny(ctx context.Context, userID snowflake.ID, courseIDs []snowflake.ID) ([]snowflake.ID, error)
	FindByUser(ctx context.Context, userID snowflake.ID) ([]Enrollment, error)
}
