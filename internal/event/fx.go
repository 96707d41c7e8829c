package event

import (
	"github.com/pulselens/pulselens/internal/event/repository"
	"github.com/pulselens/pulselens/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
