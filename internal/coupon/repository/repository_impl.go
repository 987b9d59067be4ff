package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/edmarket/coursepay/internal/coupon/domain"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := r.db.WithContext(ctx).
		First(&coupon, "code = ?", strings.ToUpper(strings.TrimSpace(code))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *Repository) Redeem(tx *gorm.DB, id snowflake.ID) (bool, error) {
	res := tx.Model(&domain.Coupon{}).
		Where("id = ? AND is_active = ? AND (max_uses IS NULL OR used_count < max_uses)", id, true).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
