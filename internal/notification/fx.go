package notification

import (
	"go.uber.org/fx"

	joinparentdomain "github.com/assemblee/assemblee/internal/joinparent/domain"
	"github.com/assemblee/assemblee/internal/notification/domain"
	"github.com/assemblee/assemblee/internal/notification/repository"
	"github.com/assemblee/assemblee/internal/notification/service"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) joinparentdomain.Notifier { return svc }),
)
