package main

import (
	"context"
	"log"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"cryptomon/internal/modules/actions"
	"cryptomon/internal/modules/config"
	"cryptomon/internal/modules/engine"
	"cryptomon/internal/modules/exchange"
	"cryptomon/internal/modules/webapi"
	"cryptomon/pkg/logger"
	"cryptomon/pkg/tracing"
)

const serviceName = "cryptomon"

func main() {
	app := fx.New(
		fx.Provide(
			func(conf *config.Config) (*zap.Logger, error) {
				logger.SetServiceName(serviceName)
				return logger.Init(conf.LogLevel)
			},
			func(lc fx.Lifecycle, conf *config.Config) (opentracing.Tracer, error) {
				tracing.SetServiceName(serviceName)
				tracer, closer, err := tracing.InitTracer(tracing.Config{
					Host: conf.Tracing.Host,
					Port: conf.Tracing.Port,
				})
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						closer()
						return nil
					},
				})
				return tracer, nil
			},
		),
		config.Module(),
		exchange.Module(),
		actions.Module(),
		engine.Module(),
		webapi.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
