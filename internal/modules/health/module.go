package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"stock_ledger/internal/modules/config"
	"stock_ledger/internal/modules/health/service"
	"stock_ledger/pkg/kv"
)

type Config struct {
	Addr         string // например ":8080"
	StoreTimeout time.Duration
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: cfg.AdminAddr(), StoreTimeout: cfg.Store.Timeout}
}

func NewMux(state *service.State) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: хранилище ответило на старте
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"ready":          state.Ready(),
			"storeConnected": state.StoreConnected(),
			"uptimeSec":      int64(state.Uptime().Seconds()),
			"lastTradeUnix": func() int64 {
				t := state.LastTrade()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	return mux
}

// CheckStore пингует хранилище при старте и выставляет готовность.
func CheckStore(lc fx.Lifecycle, cfg Config, state *service.State, store kv.Store, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
			defer cancel()
			if err := store.Ping(pingCtx); err != nil {
				log.Error("kv store ping failed", zap.Error(err))
				state.SetStoreConnected(false)
				return nil
			}
			state.SetStoreConnected(true)
			state.SetReady(true)
			return nil
		},
	})
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			log.Info("admin server listening", zap.String("addr", cfg.Addr))
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewMux,
		),
		fx.Invoke(CheckStore, RunHTTP),
	)
}
