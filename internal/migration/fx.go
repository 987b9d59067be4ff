package migration

import (
	"github.com/edmarket/coursepay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func runOnStartup(cfg config.Config, gormDB *gorm.DB, log *zap.Logger) error {
	// Schema migrations are written for postgres; other dialects are
	// expected to be provisioned externally (tests use AutoMigrate).
	if cfg.DBType != "postgres" {
		log.Info("skipping embedded migrations", zap.String("db_type", cfg.DBType))
		return nil
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

var Module = fx.Module("migration",
	fx.Invoke(runOnStartup),
)
