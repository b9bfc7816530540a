package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

// Source resolves a price for a symbol and never fails: when the live quote
// errors out the fallback policy supplies the price instead.
type Source struct {
	quoter   Quoter
	fallback Fallback
	log      *zap.Logger
}

func NewSource(quoter Quoter, fallback Fallback, log *zap.Logger) *Source {
	return &Source{
		quoter:   quoter,
		fallback: fallback,
		log:      log,
	}
}

func (s *Source) Fetch(ctx context.Context, symbol string) float64 {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pricing.Source.Fetch")
	defer span.Finish()
	span.SetTag("symbol", symbol)

	px, err := s.quoter.Quote(ctx, symbol)
	if err == nil && (math.IsNaN(px) || math.IsInf(px, 0) || px <= 0) {
		err = fmt.Errorf("invalid price %v", px)
	}
	if err == nil {
		return px
	}

	fb := s.fallback.Price(symbol)
	span.SetTag("degraded", true)
	s.log.Warn("price source degraded, using fallback price",
		zap.String("symbol", symbol),
		zap.Float64("price", fb),
		zap.Error(err),
	)
	return fb
}
