package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// TxManager mirrors the postgres transactor: repositories called with the
// returned context join the transaction.
type TxManager struct {
	db     *DB
	logger *zap.Logger
}

func NewTransactor(db *DB, logger *zap.Logger) *TxManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxManager{db: db, logger: logger}
}

type txKey struct{}

func (t *TxManager) WithTx(ctx context.Context, function func(ctx context.Context) error) (txErr error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return function(ctx)
	}

	tx, err := t.db.X.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can not begin transaction: %w", err)
	}

	defer func() {
		if txErr != nil {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				t.logger.Error("rollback", zap.Error(err))
			}
			return
		}
		if err := tx.Commit(); err != nil {
			t.logger.Error("commit", zap.Error(err))
			txErr = fmt.Errorf("commit: %w", err)
		}
	}()

	if err := function(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return fmt.Errorf("function execution error: %w", err)
	}
	return nil
}

func (db *DB) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db.X
}
