package migration

import (
	"github.com/cotravel/cotravel/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		if err := RunMigrations(conn); err != nil {
			return err
		}
		log.Info("database schema up to date")

		if seed.DemoDataRequested() {
			if err := seed.EnsureDemoCatalog(conn); err != nil {
				return err
			}
			log.Info("demo catalog seeded")
		}
		return nil
	}),
)
