package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/edmarket/coursepay/internal/instructor/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &Repository{db: db}
}

func (r *Repository) CreditOnce(tx *gorm.DB, credit *domain.InstructorCredit) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(credit)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instructor_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":    gorm.Expr("instructor_profiles.balance + ?", credit.Amount),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&domain.InstructorProfile{
		InstructorID: credit.InstructorID,
		Balance:      credit.Amount,
		Currency:     credit.Currency,
	}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) FindProfile(ctx context.Context, instructorID snowflake.ID) (*domain.InstructorProfile, error) {
	var profile domain.InstructorProfile
	err := r.db.WithContext(ctx).First(&profile, "instructor_id = ?", instructorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *Repository) CreditsByInstructor(ctx context.Context, instructorID snowflake.ID) ([]domain.InstructorCredit, error) {
	var credits []domain.InstructorCredit
	err := r.db.WithContext(ctx).
		Where("instructor_id = ?", instructorID).
		Order("created_at DESC").
		Find(&credits).Error
	return credits, err
}
