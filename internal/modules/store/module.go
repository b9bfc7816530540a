package store

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"stock_ledger/internal/modules/config"
	"stock_ledger/pkg/db"
	"stock_ledger/pkg/kv"
)

// NewKV открывает хранилище, выбранное в store.driver, и проверяет соединение.
func NewKV(ctx context.Context, lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (kv.Store, error) {
	var s kv.Store

	switch cfg.Store.Driver {
	case "memory":
		log.Warn("using in-memory store, portfolios are lost on restart")
		s = kv.NewMemory()

	case "redis":
		s = kv.NewRedis(kv.NewRedisClient(kv.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		}))

	case "postgres":
		poolMaster, err := db.NewPool(ctx, db.PoolConfig{
			DSN: cfg.Store.PostgresDSN,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create poolMaster: %w", err)
		}
		pg := kv.NewPostgres(db.NewPgTxManager(poolMaster, log))

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
		defer cancel()
		if err := pg.EnsureSchema(pingCtx); err != nil {
			poolMaster.Close()
			return nil, err
		}
		s = pg

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})

	log.Info("kv store configured", zap.String("driver", cfg.Store.Driver))
	return s, nil
}

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			NewKV,
		),
	)
}
