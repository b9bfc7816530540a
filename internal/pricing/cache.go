package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"stock_ledger/pkg/kv"
)

const (
	// DefaultTTL — сколько живёт цена в кэше.
	DefaultTTL          = 5 * time.Minute
	DefaultStoreTimeout = 2 * time.Second
)

// Fetcher is the upstream the cache reads through. It always yields a price.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) float64
}

type CacheConfig struct {
	TTL          time.Duration
	StoreTimeout time.Duration
}

// Cache is a read-through, write-on-miss price cache. Expiry is owned by the
// store TTL; concurrent misses for one symbol share a single upstream fetch.
type Cache struct {
	kv      kv.Store
	source  Fetcher
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
	log     *zap.Logger
}

func NewCache(store kv.Store, source Fetcher, cfg CacheConfig, log *zap.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &Cache{
		kv:      store,
		source:  source,
		ttl:     cfg.TTL,
		timeout: cfg.StoreTimeout,
		log:     log,
	}
}

// Key is the store key of a symbol's cached price. Tickers are case-insensitive.
func Key(symbol string) string {
	return "price:" + normalize(symbol)
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (c *Cache) GetPrice(ctx context.Context, symbol string) (price float64, err error) {
	symbol = normalize(symbol)

	span, ctx := opentracing.StartSpanFromContext(ctx, "pricing.Cache.GetPrice")
	defer span.Finish()
	span.SetTag("symbol", symbol)

	defer func() {
		if err != nil {
			err = fmt.Errorf("pricing.GetPrice: %w", err)
		}
	}()

	price, err = c.lookup(ctx, symbol)
	if err == nil {
		span.SetTag("cache", "hit")
		return price, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return 0, err
	}
	span.SetTag("cache", "miss")

	// общий запрос живёт дольше любого отдельного вызывающего:
	// отмена одного клиента не должна ронять остальных
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(symbol, func() (any, error) {
		return c.refresh(shared, symbol)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

// refresh re-checks the store, then fetches and caches a fresh price.
func (c *Cache) refresh(ctx context.Context, symbol string) (float64, error) {
	// пока ждали очередь, цену мог положить другой запрос
	if px, err := c.lookup(ctx, symbol); err == nil {
		return px, nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return 0, err
	}

	px := c.source.Fetch(ctx, symbol)
	if err := c.store(ctx, symbol, px); err != nil {
		return 0, err
	}
	return px, nil
}

func (c *Cache) lookup(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.kv.Get(ctx, Key(symbol))
	if err != nil {
		return 0, err
	}
	px, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		// битое значение считаем промахом, его перезапишет свежая цена
		c.log.Warn("unparsable cached price", zap.String("symbol", symbol), zap.ByteString("value", raw))
		return 0, kv.ErrNotFound
	}
	return px, nil
}

func (c *Cache) store(ctx context.Context, symbol string, px float64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw := strconv.FormatFloat(px, 'f', -1, 64)
	return c.kv.Set(ctx, Key(symbol), []byte(raw), c.ttl)
}
