package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/edmarket/coursepay/internal/catalog/domain"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &Repository{db: db}
}

func (r *Repository) FindPublishedByIDs(ctx context.Context, ids []snowflake.ID) ([]domain.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var courses []domain.Course
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_published = ?", ids, true).
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *Repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Course, error) {
	var course domain.Course
	err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}
