package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"stock_ledger/internal/ledger"
	"stock_ledger/internal/modules/config"
	"stock_ledger/internal/modules/health/service"
)

func NewEngine(h *Handler, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(log))
	h.Register(r)
	return r
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.PublicAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("api server listening", zap.String("addr", srv.Addr))
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(
			func(s *ledger.Service) Ledger { return s },
			func(l Ledger, state *service.State, log *zap.Logger) *Handler {
				return NewHandler(l, state, log.Named("api"))
			},
			NewEngine,
		),
		fx.Invoke(RunHTTP),
	)
}
