package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/config"
	"github.com/assemblee/assemblee/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		return seed.EnsureSuperAdmin(conn, cfg.BootstrapSuperAdminEmail)
	}),
)
