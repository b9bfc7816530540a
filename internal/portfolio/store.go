package portfolio

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stock_ledger/internal/models"
	"stock_ledger/pkg/kv"
)

var (
	ErrNotFound = errors.New("portfolio: not found")
	// ErrConflict — исчерпаны попытки условной записи.
	ErrConflict = errors.New("portfolio: too many concurrent updates")
	// ErrStoreUnavailable is kv.ErrUnavailable, re-exported for callers of this package.
	ErrStoreUnavailable = kv.ErrUnavailable
)

const (
	DefaultTimeout    = 2 * time.Second
	DefaultMaxRetries = 8
)

type Config struct {
	Timeout    time.Duration
	MaxRetries int
}

// Store maps user ids to portfolio records in a key-value store.
type Store struct {
	kv         kv.Store
	timeout    time.Duration
	maxRetries int
	log        *zap.Logger
}

func NewStore(store kv.Store, cfg Config, log *zap.Logger) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Store{
		kv:         store,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		log:        log,
	}
}

func Key(userID int64) string {
	return "portfolio:" + strconv.FormatInt(userID, 10)
}

// Get returns the stored portfolio or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID int64) (p *models.Portfolio, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("portfolio.Get: %w", err)
		}
	}()

	p, _, err = s.load(ctx, userID)
	return p, err
}

// GetOrCreate returns the stored portfolio, creating an empty one on first access.
// Creation is a create-if-absent write: a racing creator wins and its record is returned.
func (s *Store) GetOrCreate(ctx context.Context, userID int64) (p *models.Portfolio, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("portfolio.GetOrCreate: %w", err)
		}
	}()

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		p, _, err = s.load(ctx, userID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		p = models.NewPortfolio()
		raw, err := Encode(p)
		if err != nil {
			return nil, err
		}
		created, err := s.swap(ctx, userID, nil, raw)
		if err != nil {
			return nil, err
		}
		if created {
			s.log.Debug("portfolio created", zap.Int64("user_id", userID))
			return p, nil
		}
		// кто-то создал раньше нас — перечитываем
	}
	return nil, ErrConflict
}

// Put overwrites the record unconditionally; last writer wins.
func (s *Store) Put(ctx context.Context, userID int64, p *models.Portfolio) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("portfolio.Put: %w", err)
		}
	}()

	raw, err := Encode(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.kv.Set(ctx, Key(userID), raw, 0)
}

// Update loads the portfolio, applies fn and writes the result only if the record
// did not change in between, retrying up to the configured bound. An error from fn
// aborts without writing. A missing record is ErrNotFound and is never created here.
func (s *Store) Update(
	ctx context.Context,
	userID int64,
	fn func(p *models.Portfolio) error,
) (p *models.Portfolio, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("portfolio.Update: %w", err)
		}
	}()

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		cur, raw, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := fn(cur); err != nil {
			return nil, err
		}
		cur.Version++

		next, err := Encode(cur)
		if err != nil {
			return nil, err
		}
		ok, err := s.swap(ctx, userID, raw, next)
		if err != nil {
			return nil, err
		}
		if ok {
			return cur, nil
		}
		s.log.Debug("portfolio update conflict, retrying",
			zap.Int64("user_id", userID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, ErrConflict
}

func (s *Store) load(ctx context.Context, userID int64) (*models.Portfolio, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.kv.Get(ctx, Key(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	p, err := Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	return p, raw, nil
}

func (s *Store) swap(ctx context.Context, userID int64, prev, next []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.kv.CompareAndSwap(ctx, Key(userID), prev, next)
}
