package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound — ключа нет (или истёк TTL).
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable оборачивает любые сетевые ошибки и таймауты хранилища.
	ErrUnavailable = errors.New("kv: store unavailable")
)

// Store is the remote key-value service used for portfolios and cached prices.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value; ttl == 0 means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CompareAndSwap writes next only if the current value equals prev.
	// A nil prev means the key must be absent. The written key has no TTL.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	return errors.Wrap(fmt.Errorf("%w: %w", ErrUnavailable, err), op)
}
