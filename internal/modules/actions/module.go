package actions

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"cryptomon/internal/modules/actions/service"
	"cryptomon/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("actions",
		fx.Provide(
			func(conf *config.Config, log *zap.Logger) (*service.Registry, error) {
				r := service.NewRegistry(log)
				r.Register("log", service.LogHandler(log))
				if conf.Telegram.Token != "" {
					h, err := service.TelegramHandler(conf.Telegram.Token, conf.Telegram.ChatID)
					if err != nil {
						return nil, err
					}
					r.Register("telegram", h)
				}
				return r, nil
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, r *service.Registry) {
				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						r.Wait()
						return nil
					},
				})
			},
		),
	)
}
