// Package keyvalue implements the key/value variant of the storage
// engine. A logical table is a key prefix convention ("table:key") over a
// flat adapter namespace; transactions are emulated with per-table locks
// and a best-effort undo log; queries run as an in-memory
// evaluate/sort/slice pipeline over the table's documents.
package keyvalue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mesh-intelligence/strata/internal/codec"
	"github.com/mesh-intelligence/strata/internal/engine"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// Reserved physical key prefixes for internal bookkeeping documents.
const (
	schemaPrefix = "_schema:"
	seqPrefix    = "_seq:"
)

// Engine routes the uniform operation set onto a types.Adapter.
type Engine struct {
	backend types.BackendID
	adapter types.Adapter
	locks   *lockTable

	mu      sync.RWMutex
	schemas map[string]*types.Schema

	seqMu sync.Mutex
}

var _ engine.Engine = (*Engine)(nil)

// New creates a key/value engine over adapter. Call Init before use.
func New(backend types.BackendID, adapter types.Adapter) *Engine {
	return &Engine{
		backend: backend,
		adapter: adapter,
		locks:   newLockTable(),
		schemas: make(map[string]*types.Schema),
	}
}

// Init opens the adapter and loads persisted table schemas.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.adapter.Init(ctx); err != nil {
		return fmt.Errorf("backend %s: %w", e.backend, err)
	}
	keys, err := e.adapter.Keys(ctx)
	if err != nil {
		return fmt.Errorf("backend %s: loading schemas: %w", e.backend, err)
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, schemaPrefix) {
			continue
		}
		raw, ok, err := e.adapter.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		schema, err := decodeSchema(raw)
		if err != nil {
			return fmt.Errorf("backend %s: corrupt schema at %q: %w", e.backend, key, err)
		}
		e.schemas[strings.TrimPrefix(key, schemaPrefix)] = schema
	}
	return nil
}

func (e *Engine) Backend() types.BackendID { return e.backend }

func (e *Engine) SupportsRollback() types.RollbackSupport { return types.RollbackBestEffort }

func (e *Engine) Close() error   { return e.adapter.Close() }
func (e *Engine) Destroy() error { return e.adapter.Destroy() }

func (e *Engine) Info(ctx context.Context) (types.StorageInfo, error) {
	return e.adapter.Info(ctx)
}

// physKey maps a (table, key) pair onto the flat adapter namespace.
func physKey(table, key string) string {
	return table + ":" + key
}

func (e *Engine) Get(ctx context.Context, table, key string) (any, bool, error) {
	if err := engine.ValidTableName(table); err != nil {
		return nil, false, err
	}
	raw, ok, err := e.adapter.Get(ctx, physKey(table, key))
	if err != nil {
		return nil, false, fmt.Errorf("backend %s: %w", e.backend, err)
	}
	if !ok {
		return nil, false, nil
	}
	value, err := codec.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("backend %s: %w", e.backend, err)
	}
	return value, true, nil
}

func (e *Engine) Set(ctx context.Context, table, key string, value any) error {
	if err := engine.ValidTableName(table); err != nil {
		return err
	}
	if key == "" {
		return types.ErrKeyEmpty
	}
	raw, err := codec.Encode(value)
	if err != nil {
		return err
	}
	if err := e.adapter.Set(ctx, physKey(table, key), raw); err != nil {
		var quota *types.StorageQuotaError
		if errors.As(err, &quota) {
			return err
		}
		return fmt.Errorf("backend %s: %w", e.backend, err)
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, table, key string) error {
	if err := engine.ValidTableName(table); err != nil {
		return err
	}
	if err := e.adapter.Delete(ctx, physKey(table, key)); err != nil {
		return fmt.Errorf("backend %s: %w", e.backend, err)
	}
	return nil
}

func (e *Engine) Exists(ctx context.Context, table, key string) (bool, error) {
	if err := engine.ValidTableName(table); err != nil {
		return false, err
	}
	ok, err := e.adapter.Exists(ctx, physKey(table, key))
	if err != nil {
		return false, fmt.Errorf("backend %s: %w", e.backend, err)
	}
	return ok, nil
}

// Clear removes every record of the table. The auto-increment counter is
// left alone so reused tables keep generating fresh keys.
func (e *Engine) Clear(ctx context.Context, table string) error {
	if err := engine.ValidTableName(table); err != nil {
		return err
	}
	keys, err := e.tableKeys(ctx, table)
	if err != nil {
		return err
	}
	phys := make([]string, len(keys))
	for i, k := range keys {
		phys[i] = physKey(table, k)
	}
	if err := e.adapter.DeleteBatch(ctx, phys); err != nil {
		return fmt.Errorf("backend %s: clearing %q: %w", e.backend, table, err)
	}
	return nil
}

func (e *Engine) Keys(ctx context.Context, table string) ([]string, error) {
	if err := engine.ValidTableName(table); err != nil {
		return nil, err
	}
	return e.tableKeys(ctx, table)
}

// tableKeys returns the logical keys under the table's prefix, sorted for
// deterministic retrieval order.
func (e *Engine) tableKeys(ctx context.Context, table string) ([]string, error) {
	all, err := e.adapter.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", e.backend, err)
	}
	prefix := table + ":"
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Batch applies the operations in order, best-effort: a failing entry is
// recorded and the remaining entries still run. The aggregated error
// reports which entries failed; the successful ones stay applied.
func (e *Engine) Batch(ctx context.Context, ops []engine.BatchOp) error {
	var errs []error
	for i, op := range ops {
		var err error
		switch op.Kind {
		case engine.BatchSet:
			err = e.Set(ctx, op.Table, op.Key, op.Value)
		case engine.BatchDelete:
			err = e.Delete(ctx, op.Table, op.Key)
		case engine.BatchClear:
			err = e.Clear(ctx, op.Table)
		default:
			err = fmt.Errorf("unknown batch kind %q", op.Kind)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("batch[%d] %s %s: %w", i, op.Kind, op.Table, err))
		}
	}
	return errors.Join(errs...)
}

// CreateTable is structurally a no-op: a table exists once a record uses
// its prefix. A supplied schema is validated and persisted so the query
// engine can enforce it across restarts.
func (e *Engine) CreateTable(ctx context.Context, table string, schema *types.Schema) error {
	if err := engine.ValidTableName(table); err != nil {
		return err
	}
	if schema == nil {
		return nil
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	raw, err := encodeSchema(schema)
	if err != nil {
		return err
	}
	if err := e.adapter.Set(ctx, schemaPrefix+table, raw); err != nil {
		return fmt.Errorf("backend %s: persisting schema for %q: %w", e.backend, table, err)
	}
	e.mu.Lock()
	e.schemas[table] = schema
	e.mu.Unlock()
	return nil
}

// DropTable forgets the table's schema. Records are untouched: table
// identity is a prefix convention, not a stored object.
func (e *Engine) DropTable(ctx context.Context, table string) error {
	if err := engine.ValidTableName(table); err != nil {
		return err
	}
	if err := e.adapter.Delete(ctx, schemaPrefix+table); err != nil {
		return fmt.Errorf("backend %s: dropping schema for %q: %w", e.backend, table, err)
	}
	e.mu.Lock()
	delete(e.schemas, table)
	e.mu.Unlock()
	return nil
}

// ListTables reports the distinct prefixes in use plus declared tables.
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	all, err := e.adapter.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", e.backend, err)
	}
	seen := make(map[string]bool)
	for _, k := range all {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if i := strings.IndexByte(k, ':'); i > 0 {
			seen[k[:i]] = true
		}
	}
	e.mu.RLock()
	for name := range e.schemas {
		seen[name] = true
	}
	e.mu.RUnlock()
	tables := make([]string, 0, len(seen))
	for name := range seen {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables, nil
}

// Schema returns the declared schema for table, if any.
func (e *Engine) Schema(table string) (*types.Schema, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.schemas[table]
	return s, ok
}
