package seed

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/edmarket/coursepay/internal/catalog/domain"
	"github.com/edmarket/coursepay/internal/config"
	coupondomain "github.com/edmarket/coursepay/internal/coupon/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Run plants a handful of published courses and coupons so a fresh
// development database can run a full checkout immediately. Inserts are
// conflict-gated; reruns are harmless.
func Run(db *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	now := time.Now().UTC()
	instructorA := node.Generate()
	instructorB := node.Generate()

	courses := []catalogdomain.Course{
		{
			ID:           node.Generate(),
			Title:        "Go desde cero",
			PriceAmount:  14900,
			Currency:     "BRL",
			InstructorID: instructorA,
			IsPublished:  true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           node.Generate(),
			Title:        "PostgreSQL em producao",
			PriceAmount:  19900,
			Currency:     "BRL",
			InstructorID: instructorA,
			IsPublished:  true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           node.Generate(),
			Title:        "Arquitetura de microservicos",
			PriceAmount:  24900,
			Currency:     "BRL",
			InstructorID: instructorB,
			IsPublished:  true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&courses).Error; err != nil {
		return err
	}

	maxUses := int64(100)
	expires := now.AddDate(0, 3, 0)
	coupons := []coupondomain.Coupon{
		{
			ID:           node.Generate(),
			Code:         "WELCOME10",
			DiscountType: coupondomain.DiscountPercentage,
			Value:        10,
			MaxUses:      &maxUses,
			ExpiresAt:    &expires,
			IsActive:     true,
			CreatedAt:    now,
		},
		{
			ID:           node.Generate(),
			Code:         "LAUNCH50",
			DiscountType: coupondomain.DiscountFixed,
			Value:        5000,
			IsActive:     true,
			CreatedAt:    now,
		},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&coupons).Error; err != nil {
		return err
	}

	log.Info("development seed applied",
		zap.Int("courses", len(courses)),
		zap.Int("coupons", len(coupons)),
	)
	return nil
}

func runOnStartup(cfg config.Config, db *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	if cfg.Environment != "development" {
		return nil
	}
	return Run(db, node, log)
}

var Module = fx.Module("seed",
	fx.Invoke(runOnStartup),
)
