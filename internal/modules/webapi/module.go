package webapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"cryptomon/internal/modules/config"
	engsvc "cryptomon/internal/modules/engine/service"
	"cryptomon/internal/modules/webapi/service"
)

func Module() fx.Option {
	return fx.Module("webapi",
		fx.Provide(
			func(e *engsvc.Engine) *http.ServeMux {
				return service.NewMux(e)
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, conf *config.Config, mux *http.ServeMux, log *zap.Logger) {
				srv := &http.Server{
					Addr:              conf.Service.Addr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						ln, err := net.Listen("tcp", conf.Service.Addr)
						if err != nil {
							return err
						}
						log.Info("api listening", zap.String("addr", conf.Service.Addr))
						go func() { _ = srv.Serve(ln) }()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						return srv.Shutdown(ctx)
					},
				})
			},
		),
	)
}
