package equipment

import (
	"github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/internal/equipment/repository"
	"github.com/smallbiznis/equiprent/internal/equipment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("equipment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) domain.Registry { return s },
		func(s *service.Service) domain.Resolver { return s },
	),
)
