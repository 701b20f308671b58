package exchange

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"cryptomon/internal/modules/config"
	"cryptomon/internal/modules/exchange/service"
)

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			func(conf *config.Config, log *zap.Logger) *service.Registry {
				return service.NewRegistry(conf.Exchanges, log)
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, r *service.Registry) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						r.StartAll(context.Background())
						return nil
					},
					OnStop: func(ctx context.Context) error {
						return r.CloseAll()
					},
				})
			},
		),
	)
}
