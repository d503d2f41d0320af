package ledger

import (
	"github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/internal/ledger/repository"
	"github.com/smallbiznis/equiprent/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) domain.Reconciler { return s }),
)
