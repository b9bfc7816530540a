package kv

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"stock_ledger/pkg/db"
)

const (
	schemaSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
)`
	purgeExpiredSQL = `DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= now()`

	getSQL = `
SELECT value FROM kv_store
WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	setSQL = `
INSERT INTO kv_store (key, value, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

	// истёкшая строка считается отсутствующей
	insertIfAbsentSQL = `
INSERT INTO kv_store (key, value, expires_at) VALUES ($1, $2, NULL)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = NULL
WHERE kv_store.expires_at IS NOT NULL AND kv_store.expires_at <= now()`

	swapSQL = `
UPDATE kv_store SET value = $3, expires_at = NULL
WHERE key = $1 AND value = $2 AND (expires_at IS NULL OR expires_at > now())`
)

// Postgres implements Store on a single kv_store table.
type Postgres struct {
	db db.TxManager
}

func NewPostgres(tm db.TxManager) *Postgres {
	return &Postgres{db: tm}
}

// EnsureSchema creates the table and drops rows whose TTL already passed.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	err := p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		if _, err := tx.Exec(ctxTx, schemaSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctxTx, purgeExpiredSQL)
		return err
	})
	if err != nil {
		return unavailable("kv.Postgres.EnsureSchema", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.Conn().QueryRow(ctx, getSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("kv.Postgres.Get", err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	if _, err := p.db.Conn().Exec(ctx, setSQL, key, value, expiresAt); err != nil {
		return unavailable("kv.Postgres.Set", err)
	}
	return nil
}

func (p *Postgres) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if prev == nil {
		tag, err = p.db.Conn().Exec(ctx, insertIfAbsentSQL, key, next)
	} else {
		tag, err = p.db.Conn().Exec(ctx, swapSQL, key, prev, next)
	}
	if err != nil {
		return false, unavailable("kv.Postgres.CompareAndSwap", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return unavailable("kv.Postgres.Ping", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
