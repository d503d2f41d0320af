package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRentalPolicyHolder),
	fx.Provide(func(h *RentalPolicyHolder) RentalPolicySource { return h }),
)
