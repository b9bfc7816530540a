package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stock_ledger/internal/models"
	"stock_ledger/internal/modules/health/service"
	"stock_ledger/internal/portfolio"
)

type Ledger interface {
	GetPortfolio(ctx context.Context, userID int64) (*models.Portfolio, error)
	Buy(ctx context.Context, userID int64, symbol string, amt int64) (bool, error)
	Sell(ctx context.Context, userID int64, symbol string, amt int64) (bool, error)
}

type Handler struct {
	ledger Ledger
	state  *service.State
	log    *zap.Logger
}

func NewHandler(l Ledger, state *service.State, log *zap.Logger) *Handler {
	return &Handler{ledger: l, state: state, log: log}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/v1/api")
	g.GET("/get_stocks/:id", h.getStocks)
	g.POST("/buy_stock/:id/:stock_name/:amt", h.trade(false))
	g.POST("/sell_stock/:id/:stock_name/:amt", h.trade(true))
}

func (h *Handler) getStocks(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	p, err := h.ledger.GetPortfolio(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.state.SetStoreConnected(true)
	c.JSON(http.StatusOK, p)
}

func (h *Handler) trade(sell bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		amt, err := strconv.ParseInt(c.Param("amt"), 10, 64)
		if err != nil || amt <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive integer"})
			return
		}
		symbol := c.Param("stock_name")

		var ok bool
		if sell {
			ok, err = h.ledger.Sell(c.Request.Context(), id, symbol, amt)
		} else {
			ok, err = h.ledger.Buy(c.Request.Context(), id, symbol, amt)
		}
		if err != nil {
			h.fail(c, err)
			return
		}
		// ответ без ошибки значит, что хранилище снова отвечает
		h.state.SetStoreConnected(true)
		if ok {
			h.state.TouchTrade(time.Now())
		}
		c.JSON(http.StatusOK, ok)
	}
}

// fail: 503 — можно повторить, 409 — повторить позже, остальное 500.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, portfolio.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		h.state.SetStoreConnected(false)
	case errors.Is(err, portfolio.ErrConflict):
		status = http.StatusConflict
	}
	h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"error": http.StatusText(status)})
}
