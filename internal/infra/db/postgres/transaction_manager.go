package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.TransactionManager = (*TxManager)(nil)

// Conflict retry policy. Read-modify-write closures re-run on serialization
// failures and deadlocks, with a short growing backoff between attempts.
const (
	txMaxAttempts  = 3
	txRetryBackoff = 25 * time.Millisecond
)

// TxManager implements repository.TransactionManager for Postgres (pgx).
// It begins a transaction, invokes the callback with the tx handle, and
// commits or rolls back. Conflicting concurrent writes (SQLSTATE 40001 /
// 40P01) roll back and re-run the callback up to txMaxAttempts times, so use
// cases never carry their own retry loops.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * txRetryBackoff):
			}
		}
		err := m.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryableTxError(err) {
			return err
		}
		lastErr = err
	}
	return errors.Join(domain.ErrTxConflict, lastErr)
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err // rollback in defer
	}
	return tx.Commit(ctx)
}

func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
