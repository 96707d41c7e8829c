package behavioral

import (
	"github.com/pulselens/pulselens/internal/behavioral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("behavioral.service",
	fx.Provide(service.NewService),
)
