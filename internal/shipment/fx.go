package shipment

import (
	"github.com/smallbiznis/equiprent/internal/shipment/repository"
	"github.com/smallbiznis/equiprent/internal/shipment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("shipment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
