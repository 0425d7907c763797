// Package engine defines the operation set both backend families
// implement. Exactly two variants exist: the relational engine and the
// key/value engine. The façade holds one Engine reference, swapped at
// most once during initialization by the fallback supervisor.
package engine

import (
	"context"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// BatchKind discriminates batch entries.
type BatchKind string

const (
	BatchSet    BatchKind = "set"
	BatchDelete BatchKind = "delete"
	BatchClear  BatchKind = "clear"
)

// BatchOp is one entry of a batch. Value is used only by BatchSet; Key is
// unused by BatchClear.
type BatchOp struct {
	Kind  BatchKind
	Table string
	Key   string
	Value any
}

// Engine is the uniform backend contract. The relational variant applies
// batches all-or-nothing and maps transactions onto native BEGIN/COMMIT;
// the key/value variant applies batches best-effort and emulates
// transactions with per-table locks and an undo log.
type Engine interface {
	Backend() types.BackendID
	SupportsRollback() types.RollbackSupport
	Close() error
	Destroy() error
	Info(ctx context.Context) (types.StorageInfo, error)

	// Record operations.
	Get(ctx context.Context, table, key string) (any, bool, error)
	Set(ctx context.Context, table, key string, value any) error
	Delete(ctx context.Context, table, key string) error
	Exists(ctx context.Context, table, key string) (bool, error)
	Clear(ctx context.Context, table string) error
	Keys(ctx context.Context, table string) ([]string, error)
	Batch(ctx context.Context, ops []BatchOp) error

	// Table lifecycle. CreateTable and DropTable are structural no-ops
	// for the key/value family beyond schema bookkeeping.
	CreateTable(ctx context.Context, table string, schema *types.Schema) error
	DropTable(ctx context.Context, table string) error
	ListTables(ctx context.Context) ([]string, error)
	Schema(table string) (*types.Schema, bool)

	// Begin opens a transaction scoped to the given table set.
	Begin(ctx context.Context, tables []string, mode types.TxnMode) (Txn, error)

	// Query engine operations over declared tables.
	FindAll(ctx context.Context, table string, q types.Query) ([]types.Row, error)
	Count(ctx context.Context, table string, q types.Query) (int64, error)
	Insert(ctx context.Context, table string, row types.Row) (types.Row, error)
	Update(ctx context.Context, table string, q types.Query, changes types.Row) (int64, error)
	DeleteRows(ctx context.Context, table string, q types.Query) (int64, error)
}

// Txn is a transaction handle. Operations fail with
// *types.TransactionInactiveError once the transaction is terminal.
type Txn interface {
	State() types.TxnState
	Get(ctx context.Context, table, key string) (any, bool, error)
	Set(ctx context.Context, table, key string, value any) error
	Delete(ctx context.Context, table, key string) error
	Exists(ctx context.Context, table, key string) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
