package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/timothysaatum/election-system/internal/core/port"
)

type txKey struct{}

// txBeginner is satisfied by pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager implements port.Transactor on a pgx connection pool. The open
// transaction travels in the context and every repository resolves it
// through executor, so one WithinTransaction call can span several
// repositories.
type TxManager struct {
	pool txBeginner
}

// NewTxManager constructs a TxManager.
func NewTxManager(pool txBeginner) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTransaction runs fn inside a transaction. A nested call joins the
// transaction already carried by the context instead of opening another one.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// executor resolves the statement executor for a single call: the context's
// open transaction when present, the repository's own executor otherwise.
func executor(ctx context.Context, fallback pgExecutor) pgExecutor {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return fallback
}

var _ port.Transactor = (*TxManager)(nil)
