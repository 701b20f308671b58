package engine

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"cryptomon/internal/cache"
	"cryptomon/internal/expr"
	"cryptomon/internal/graph"
	"cryptomon/internal/models"
	actsvc "cryptomon/internal/modules/actions/service"
	"cryptomon/internal/modules/config"
	"cryptomon/internal/modules/engine/service"
	exsvc "cryptomon/internal/modules/exchange/service"
)

// exchangeDirectory narrows the exchange registry to the slice the engine
// consumes.
type exchangeDirectory struct {
	registry *exsvc.Registry
}

func (d exchangeDirectory) Get(name string) (service.ExchangeClient, error) {
	c, err := d.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// actionSink bridges the engine's dispatch surface onto the action registry.
type actionSink struct {
	registry *actsvc.Registry
}

func (s actionSink) Has(name string) bool { return s.registry.Has(name) }

func (s actionSink) Dispatch(ctx context.Context, name string, task *models.Task, message string, vars expr.ExecContext, client service.ExchangeClient) error {
	return s.registry.Dispatch(ctx, name, task, message, vars, client)
}

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			func(conf *config.Config) *graph.Graph {
				return graph.New(conf.TaskModels())
			},
			cache.New,
			func(
				g *graph.Graph,
				c *cache.ResultCache,
				exchanges *exsvc.Registry,
				actions *actsvc.Registry,
				tracer opentracing.Tracer,
				log *zap.Logger,
				conf *config.Config,
			) (*service.Engine, error) {
				return service.New(g, c, exchangeDirectory{exchanges}, actionSink{actions}, tracer, log, conf.DefaultTTL())
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, e *service.Engine) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						e.Start(context.Background())
						return nil
					},
					OnStop: func(ctx context.Context) error {
						e.Stop()
						return nil
					},
				})
			},
		),
	)
}
