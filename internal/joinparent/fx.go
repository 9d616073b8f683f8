package joinparent

import (
	"go.uber.org/fx"

	"github.com/assemblee/assemblee/internal/joinparent/repository"
	"github.com/assemblee/assemblee/internal/joinparent/service"
)

var Module = fx.Module("joinparent.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
