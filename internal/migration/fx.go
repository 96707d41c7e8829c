package migration

import (
	"github.com/pulselens/pulselens/internal/config"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	expansiondomain "github.com/pulselens/pulselens/internal/expansion/domain"
	onboardingdomain "github.com/pulselens/pulselens/internal/onboarding/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite and mysql deployments rely on schema inference.
		return conn.AutoMigrate(
			&eventdomain.UsageEvent{},
			&expansiondomain.SeatLicense{},
			&onboardingdomain.OnboardingStart{},
		)
	}),
)
