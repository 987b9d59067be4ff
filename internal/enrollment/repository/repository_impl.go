package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/edmarket/coursepay/internal/enrollment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateIfAbsent(tx *gorm.DB, e *domain.Enrollment) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) EnrolledAny(ctx context.Context, userID snowflake.ID, courseIDs []snowflake.ID) ([]snowflake.ID, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var owned []snowflake.ID
	err := r.db.WithContext(ctx).Model(&domain.Enrollment{}).
		Where("user_id = ? AND course_id IN ?", userID, courseIDs).
		Pluck("course_id", &owned).Error
	return owned, err
}

func (r *Repository) FindByUser(ctx context.Context, userID snowflake.ID) ([]domain.Enrollment, error) {
	var enrollments []domain.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}
