package relational

import (
	"context"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/strata/internal/engine"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// txn wraps a native SQLite transaction. Writer-writer exclusion comes
// from the engine's single connection: a second BeginTx blocks until the
// first transaction releases it. Read-only mode is enforced here since
// the emulator owns mode semantics for both families.
type txn struct {
	e      *Engine
	tx     sqlTx
	mode   types.TxnMode
	tables map[string]bool

	mu    sync.Mutex
	state types.TxnState
}

// sqlTx is the slice of *sql.Tx the wrapper needs.
type sqlTx interface {
	dbtx
	Commit() error
	Rollback() error
}

var _ engine.Txn = (*txn)(nil)

// Begin opens a native transaction scoped to the given table set.
// Because the engine holds a single pooled connection, transactions of
// either mode serialize: a read-only transaction waits behind any other
// open transaction, stricter than the key/value family where readers
// share. Callers needing concurrent readers should use direct reads
// outside a transaction.
func (e *Engine) Begin(ctx context.Context, tables []string, mode types.TxnMode) (engine.Txn, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("backend %s: transaction needs a non-empty table set", e.backend)
	}
	set := make(map[string]bool, len(tables))
	for _, t := range tables {
		if err := engine.ValidTableName(t); err != nil {
			return nil, err
		}
		set[t] = true
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("backend %s: beginning transaction: %w", e.backend, err)
	}
	return &txn{
		e:      e,
		tx:     tx,
		mode:   mode,
		tables: set,
		state:  types.TxnActive,
	}, nil
}

func (t *txn) State() types.TxnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *txn) check(table string, write bool) error {
	if t.state != types.TxnActive {
		return &types.TransactionInactiveError{State: t.state}
	}
	if !t.tables[table] {
		return fmt.Errorf("table %q is not in the transaction's table set", table)
	}
	if write && t.mode == types.ReadOnly {
		return types.ErrReadOnly
	}
	if err := t.e.checkPlainTable(table); err != nil {
		return err
	}
	return nil
}

func (t *txn) Get(ctx context.Context, table, key string) (any, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(table, false); err != nil {
		return nil, false, err
	}
	return getKV(ctx, t.tx, t.e.backend, table, key)
}

func (t *txn) Exists(ctx context.Context, table, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(table, false); err != nil {
		return false, err
	}
	return existsKV(ctx, t.tx, t.e.backend, table, key)
}

func (t *txn) Set(ctx context.Context, table, key string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(table, true); err != nil {
		return err
	}
	if key == "" {
		return types.ErrKeyEmpty
	}
	return setKV(ctx, t.tx, t.e.backend, table, key, value)
}

func (t *txn) Delete(ctx context.Context, table, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(table, true); err != nil {
		return err
	}
	return deleteKV(ctx, t.tx, t.e.backend, table, key)
}

func (t *txn) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != types.TxnActive {
		return &types.TransactionInactiveError{State: t.state}
	}
	t.state = types.TxnCommitted
	if err := t.tx.Commit(); err != nil {
		return &types.TransactionError{Op: "commit", Err: err}
	}
	return nil
}

func (t *txn) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != types.TxnActive {
		return &types.TransactionInactiveError{State: t.state}
	}
	t.state = types.TxnRolledBack
	if err := t.tx.Rollback(); err != nil {
		return &types.TransactionError{Op: "rollback", Err: err}
	}
	return nil
}
