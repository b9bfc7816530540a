package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock_ledger/internal/models"
	"stock_ledger/internal/portfolio"
)

// ErrRejected wraps every precondition failure; Trade turns it into false.
var ErrRejected = errors.New("trade rejected")

var (
	errUnknownHolding      = fmt.Errorf("%w: symbol not held", ErrRejected)
	errNonPositiveHolding  = fmt.Errorf("%w: holding is not positive", ErrRejected)
	errOversell            = fmt.Errorf("%w: sell exceeds holding", ErrRejected)
	errInsufficientBalance = fmt.Errorf("%w: balance would go negative", ErrRejected)
)

type PortfolioStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*models.Portfolio, error)
	Update(ctx context.Context, userID int64, fn func(p *models.Portfolio) error) (*models.Portfolio, error)
}

type PriceCache interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Policy делает явными решения, которые исходная логика оставляла открытыми.
type Policy struct {
	// AllowOversell permits a sell that leaves the holding negative.
	AllowOversell bool
	// AllowNegativeBalance permits buys the balance cannot cover.
	AllowNegativeBalance bool
}

func DefaultPolicy() Policy {
	return Policy{AllowOversell: false, AllowNegativeBalance: true}
}

// Service applies buy/sell requests to user portfolios.
type Service struct {
	store  PortfolioStore
	prices PriceCache
	policy Policy
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store PortfolioStore, prices PriceCache, policy Policy, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		prices: prices,
		policy: policy,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPortfolio returns the user's portfolio, creating an empty one on first access.
func (s *Service) GetPortfolio(ctx context.Context, userID int64) (*models.Portfolio, error) {
	return s.store.GetOrCreate(ctx, userID)
}

func (s *Service) Buy(ctx context.Context, userID int64, symbol string, amt int64) (bool, error) {
	return s.Trade(ctx, userID, symbol, amt)
}

func (s *Service) Sell(ctx context.Context, userID int64, symbol string, amt int64) (bool, error) {
	return s.Trade(ctx, userID, symbol, -amt)
}

// Trade applies a signed quantity change to one holding: positive buys, negative sells.
// A rejected precondition (unknown user, symbol not held, policy violation) returns
// false with a nil error and writes nothing. Store failures are returned as errors.
func (s *Service) Trade(ctx context.Context, userID int64, symbol string, delta int64) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ledger.Trade")
	defer span.Finish()
	span.SetTag("user_id", userID)
	span.SetTag("symbol", symbol)
	span.SetTag("delta", delta)

	if delta == 0 {
		return false, nil
	}

	p, err := s.store.Update(ctx, userID, func(p *models.Portfolio) error {
		return s.apply(ctx, p, symbol, delta)
	})
	switch {
	case err == nil:
		s.log.Info("trade applied",
			zap.Int64("user_id", userID),
			zap.String("symbol", symbol),
			zap.Int64("delta", delta),
			zap.Int64("holding", p.Holdings[symbol]),
			zap.Stringer("balance", p.Balance),
		)
		return true, nil
	case errors.Is(err, portfolio.ErrNotFound), errors.Is(err, ErrRejected):
		s.log.Debug("trade rejected",
			zap.Int64("user_id", userID),
			zap.String("symbol", symbol),
			zap.Int64("delta", delta),
			zap.Error(err),
		)
		return false, nil
	default:
		span.SetTag("error", true)
		s.log.Error("trade failed",
			zap.Int64("user_id", userID),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return false, fmt.Errorf("ledger.Trade: %w", err)
	}
}

func (s *Service) apply(ctx context.Context, p *models.Portfolio, symbol string, delta int64) error {
	cur, ok := p.Holdings[symbol]
	if !ok {
		return errUnknownHolding
	}
	if cur <= 0 {
		return errNonPositiveHolding
	}
	next := cur + delta
	if next < 0 && !s.policy.AllowOversell {
		return errOversell
	}

	price, err := s.prices.GetPrice(ctx, symbol)
	if err != nil {
		return err
	}

	// баланс хранится точным decimal: buy+sell по одной цене возвращают его ровно
	balance := p.Balance.Sub(decimal.NewFromInt(delta).Mul(decimal.NewFromFloat(price)))
	if balance.IsNegative() && !s.policy.AllowNegativeBalance {
		return errInsufficientBalance
	}

	p.Holdings[symbol] = next
	p.Balance = balance
	p.History[historyKey(p, s.now())] = models.Action{
		IsSell: delta < 0,
		Amount: abs(delta),
	}
	return nil
}

// historyKey takes the first free millisecond at or after now.
func historyKey(p *models.Portfolio, now time.Time) int64 {
	ms := now.UnixMilli()
	for {
		if _, taken := p.History[ms]; !taken {
			return ms
		}
		ms++
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
