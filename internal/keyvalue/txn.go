package keyvalue

import (
	"context"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/strata/internal/engine"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// txn is an emulated transaction. Writes are applied eagerly to the
// adapter; before the first write to each key the prior state is recorded
// in an undo log, which Rollback replays in reverse. This gives
// best-effort rollback only: another writer outside the transaction can
// clobber intermediate state, and an undo write itself may fail.
type txn struct {
	e       *Engine
	mode    types.TxnMode
	tables  map[string]bool
	release func()

	mu    sync.Mutex
	state types.TxnState
	undo  []undoEntry
	seen  map[string]bool
}

type undoEntry struct {
	physKey string
	existed bool
	prev    []byte
}

var _ engine.Txn = (*txn)(nil)

// Begin blocks until the table set's locks are held, then returns an
// active transaction scoped to exactly those tables.
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
	release := e.locks.acquire(tables, mode)
	return &txn{
		e:       e,
		mode:    mode,
		tables:  set,
		release: release,
		state:   types.TxnActive,
		seen:    make(map[string]bool),
	}, nil
}

func (t *txn) State() types.TxnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// check guards every operation: terminal state fails deterministically,
// and operations outside the declared table set are rejected.
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
	return nil
}

func (t *txn) Get(ctx context.Context, table, key string) (any, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(table, false); err != nil {
		return nil, false, err
	}
	return t.e.Get(ctx, table, key)
}

func (t *txn) Exists(ctx context.Context, table, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(table, false); err != nil {
		return false, err
	}
	return t.e.Exists(ctx, table, key)
}

func (t *txn) Set(ctx context.Context, table, key string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(table, true); err != nil {
		return err
	}
	if err := t.snapshot(ctx, table, key); err != nil {
		return err
	}
	return t.e.Set(ctx, table, key, value)
}

func (t *txn) Delete(ctx context.Context, table, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(table, true); err != nil {
		return err
	}
	if err := t.snapshot(ctx, table, key); err != nil {
		return err
	}
	return t.e.Delete(ctx, table, key)
}

// snapshot records the key's prior state once, before its first write in
// this transaction.
func (t *txn) snapshot(ctx context.Context, table, key string) error {
	pk := physKey(table, key)
	if t.seen[pk] {
		return nil
	}
	prev, existed, err := t.e.adapter.Get(ctx, pk)
	if err != nil {
		return fmt.Errorf("backend %s: snapshotting %q: %w", t.e.backend, pk, err)
	}
	t.seen[pk] = true
	t.undo = append(t.undo, undoEntry{physKey: pk, existed: existed, prev: prev})
	return nil
}

// Commit is a no-op beyond state transition: writes were applied eagerly.
func (t *txn) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != types.TxnActive {
		return &types.TransactionInactiveError{State: t.state}
	}
	t.state = types.TxnCommitted
	t.undo = nil
	t.release()
	return nil
}

// Rollback replays the undo log in reverse. The transaction reaches the
// rolled-back state even when an undo write fails; the failure is
// reported as a *types.TransactionError.
func (t *txn) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != types.TxnActive {
		return &types.TransactionInactiveError{State: t.state}
	}
	t.state = types.TxnRolledBack

	var failure error
	for i := len(t.undo) - 1; i >= 0; i-- {
		entry := t.undo[i]
		var err error
		if entry.existed {
			err = t.e.adapter.Set(ctx, entry.physKey, entry.prev)
		} else {
			err = t.e.adapter.Delete(ctx, entry.physKey)
		}
		if err != nil && failure == nil {
			failure = fmt.Errorf("restoring %q: %w", entry.physKey, err)
		}
	}
	t.undo = nil
	t.release()

	if failure != nil {
		return &types.TransactionError{Op: "rollback", Err: failure}
	}
	return nil
}
