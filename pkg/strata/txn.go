package strata

import (
	"context"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Txn is the operation surface available inside a transaction callback.
type Txn interface {
	State() types.TxnState
	Get(ctx context.Context, table, key string) (any, bool, error)
	Set(ctx context.Context, table, key string, value any) error
	Delete(ctx context.Context, table, key string) error
	Exists(ctx context.Context, table, key string) (bool, error)
}

// Transaction runs fn inside a transaction scoped to tables. A nil error
// from fn commits; any error rolls back and is returned unchanged. If the
// rollback itself fails, the returned *types.TransactionError retains the
// callback's error as Cause. Rollback on a key/value backend is
// best-effort; consult SupportsRollback.
func (db *DB) Transaction(ctx context.Context, tables []string, mode types.TxnMode, fn func(tx Txn) error) error {
	eng, err := db.guard("transaction")
	if err != nil {
		return err
	}
	tx, err := eng.Begin(ctx, tables, mode)
	if err != nil {
		return err
	}
	// A panicking callback must not leave the transaction open: table
	// locks (key/value) and the pooled connection (relational) are only
	// released by reaching a terminal state.
	defer func() {
		if tx.State() == types.TxnActive {
			_ = tx.Rollback(ctx)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return &types.TransactionError{Op: "rollback", Err: rbErr, Cause: err}
		}
		return err
	}
	return tx.Commit(ctx)
}
