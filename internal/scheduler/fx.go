package scheduler

import (
	"context"

	"github.com/smallbiznis/equiprent/internal/exchangerate"
	rentaldomain "github.com/smallbiznis/equiprent/internal/rental/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideRedis),
	fx.Provide(NewLocker),
	fx.Provide(func(c *exchangerate.Client) RatesRefresher { return c }),
	fx.Provide(func(s rentaldomain.Service) DueLister { return s }),
	fx.Provide(New),
	fx.Invoke(Register),
)

func Register(lc fx.Lifecycle, cfg Config, sched *Scheduler) {
	if !cfg.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sched.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}
