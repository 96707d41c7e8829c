package expansion

import (
	"github.com/pulselens/pulselens/internal/expansion/domain"
	"github.com/pulselens/pulselens/internal/expansion/service"
	"github.com/pulselens/pulselens/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("expansion.service",
	fx.Provide(func(db *gorm.DB) repository.Repository[domain.SeatLicense] {
		return repository.ProvideStore[domain.SeatLicense](db)
	}),
	fx.Provide(service.NewService),
)
