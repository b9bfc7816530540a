package ledger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"stock_ledger/internal/ledger"
	"stock_ledger/internal/modules/config"
	"stock_ledger/internal/portfolio"
	"stock_ledger/internal/pricing"
	"stock_ledger/pkg/kv"
)

func NewQuoter(cfg *config.Config) pricing.Quoter {
	return pricing.NewHTTPQuoter(pricing.QuoterConfig{
		BaseURL: cfg.Prices.BaseURL,
		APIKey:  cfg.Prices.APIKey,
		Timeout: cfg.Prices.Timeout,
	})
}

func NewFallback(cfg *config.Config) pricing.Fallback {
	if cfg.Prices.Fallback == "fixed" {
		return pricing.FixedFallback(cfg.Prices.FallbackPrice)
	}
	if cfg.Prices.FallbackSeed != 0 {
		return pricing.RandomFallback(pricing.NewSeededRand(cfg.Prices.FallbackSeed))
	}
	return pricing.RandomFallback(nil)
}

func NewPriceCache(store kv.Store, source *pricing.Source, cfg *config.Config, log *zap.Logger) *pricing.Cache {
	return pricing.NewCache(store, source, pricing.CacheConfig{
		TTL:          cfg.Prices.CacheTTL,
		StoreTimeout: cfg.Store.Timeout,
	}, log.Named("prices"))
}

func NewPortfolioStore(store kv.Store, cfg *config.Config, log *zap.Logger) *portfolio.Store {
	return portfolio.NewStore(store, portfolio.Config{
		Timeout:    cfg.Store.Timeout,
		MaxRetries: cfg.Store.MaxRetries,
	}, log.Named("portfolio"))
}

func NewService(store *portfolio.Store, prices *pricing.Cache, cfg *config.Config, log *zap.Logger) *ledger.Service {
	policy := ledger.Policy{
		AllowOversell:        cfg.Ledger.AllowOversell,
		AllowNegativeBalance: cfg.Ledger.AllowNegativeBalance,
	}
	log.Info("ledger policy",
		zap.Bool("allow_oversell", policy.AllowOversell),
		zap.Bool("allow_negative_balance", policy.AllowNegativeBalance),
	)
	return ledger.NewService(store, prices, policy, log.Named("ledger"))
}

// Module собирает ядро: источник цен -> кэш, хранилище портфелей -> сервис сделок.
func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(
			NewQuoter,
			NewFallback,
			func(q pricing.Quoter, fb pricing.Fallback, log *zap.Logger) *pricing.Source {
				return pricing.NewSource(q, fb, log.Named("source"))
			},
			NewPriceCache,
			NewPortfolioStore,
			NewService,
		),
	)
}
