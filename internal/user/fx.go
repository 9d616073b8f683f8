package user

import (
	"go.uber.org/fx"

	"github.com/assemblee/assemblee/internal/user/repository"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.NewRepository),
)
