package onboarding

import (
	"github.com/pulselens/pulselens/internal/onboarding/domain"
	"github.com/pulselens/pulselens/internal/onboarding/service"
	"github.com/pulselens/pulselens/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("onboarding.service",
	fx.Provide(func(db *gorm.DB) repository.Repository[domain.OnboardingStart] {
		return repository.ProvideStore[domain.OnboardingStart](db)
	}),
	fx.Provide(service.NewService),
)
