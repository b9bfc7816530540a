package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"stock_ledger/internal/modules/api"
	"stock_ledger/internal/modules/config"
	"stock_ledger/internal/modules/health"
	ledgermod "stock_ledger/internal/modules/ledger"
	"stock_ledger/internal/modules/observability"
	"stock_ledger/internal/modules/store"
)

func modules() fx.Option {
	return fx.Options(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		observability.Module(),
		store.Module(),
		ledgermod.Module(),
		health.Module(),
		api.Module(),
	)
}

func main() {
	fx.New(
		modules(),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	).Run()
}
