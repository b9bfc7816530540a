package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PoolConfig struct {
	DSN string
}

type PgTxManager struct {
	poolMaster *pgxpool.Pool
	log        *zap.Logger
}

func NewPgTxManager(poolMaster *pgxpool.Pool, log *zap.Logger) *PgTxManager {
	return &PgTxManager{
		poolMaster: poolMaster,
		log:        log,
	}
}

func (m *PgTxManager) Close() {
	m.poolMaster.Close()
}

func (m *PgTxManager) Ping(ctx context.Context) error {
	return m.poolMaster.Ping(ctx)
}

func NewPool(ctx context.Context, conf PoolConfig) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, conf.DSN)
}

func (m *PgTxManager) RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx Transaction) error) error {
	options := pgx.TxOptions{
		IsoLevel: pgx.ReadCommitted,
	}
	return m.inTx(ctx, options, fn)
}

// Conn — запросы вне транзакции (одиночные стейтменты).
func (m *PgTxManager) Conn() Transaction {
	return m.poolMaster
}

func (m *PgTxManager) inTx(
	ctx context.Context,
	options pgx.TxOptions,
	f func(ctxTx context.Context, tx Transaction) error,
) (err error) {
	tx, err := m.poolMaster.BeginTx(ctx, options)
	if err != nil {
		return fmt.Errorf("failed to begin tx, err: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			m.log.Error("panic in tx", zap.Any("panic", p))
			_ = tx.Rollback(ctx)
			panic(p) // fallthrough panic after rollback on caught panic
		} else if err != nil {
			_ = tx.Rollback(ctx) // if error during computations
		} else {
			err = tx.Commit(ctx) // all good
		}
	}()

	err = f(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to run fn, err: %w", err)
	}

	return nil
}
