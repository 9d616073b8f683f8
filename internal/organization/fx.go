package organization

import (
	"go.uber.org/fx"

	"github.com/assemblee/assemblee/internal/organization/repository"
	"github.com/assemblee/assemblee/internal/organization/service"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
