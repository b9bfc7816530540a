package observability

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"stock_ledger/internal/modules/config"
	"stock_ledger/pkg/logger"
	"stock_ledger/pkg/tracing"
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Service:     cfg.Service.Name,
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
}

// RunTracer поднимает Jaeger, если он включён; иначе остаётся noop-трейсер opentracing.
func RunTracer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	if !cfg.Tracing.Enabled {
		return nil
	}

	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName: cfg.Service.Name,
		Host:        cfg.Tracing.Host,
		Port:        cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	log.Info("jaeger tracer started", zap.String("agent", cfg.Tracing.Host), zap.Int("port", cfg.Tracing.Port))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closeTracer()
		},
	})
	return nil
}

func Module() fx.Option {
	return fx.Module("observability",
		fx.Provide(
			NewLogger,
		),
		fx.Invoke(RunTracer),
	)
}
