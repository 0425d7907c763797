// Package relational implements the relational variant of the storage
// engine on SQLite. Undeclared tables use the default (key TEXT PRIMARY
// KEY, value TEXT NOT NULL) layout holding the structural encoding;
// declared tables get one physical column per schema column. Queries
// compile to parameterized SQL and transactions map onto the engine's
// native BEGIN/COMMIT/ROLLBACK.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/strata/internal/codec"
	"github.com/mesh-intelligence/strata/internal/engine"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// metaTable records declared schemas so they survive reopening the file.
const metaTable = "_strata_schema"

// MemoryPath opens a private in-memory database instead of a file.
const MemoryPath = ":memory:"

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Engine routes the uniform operation set onto a SQLite database.
type Engine struct {
	backend types.BackendID
	path    string
	db      *sql.DB

	mu      sync.RWMutex
	schemas map[string]*types.Schema
}

var _ engine.Engine = (*Engine)(nil)

// Open opens (or creates) the database at path and loads declared
// schemas. The connection pool is capped at one connection: SQLite
// serializes writers anyway, and the single handle is exclusively owned
// by this engine.
func Open(ctx context.Context, backend types.BackendID, path string) (*Engine, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("backend %s: opening %s: %w", backend, path, err)
	}
	db.SetMaxOpenConns(1)

	e := &Engine{
		backend: backend,
		path:    path,
		db:      db,
		schemas: make(map[string]*types.Schema),
	}
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (name TEXT PRIMARY KEY, def TEXT NOT NULL)`, metaTable)); err != nil {
		db.Close()
		return nil, fmt.Errorf("backend %s: creating schema registry: %w", backend, err)
	}
	if err := e.loadSchemas(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadSchemas(ctx context.Context) error {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(`SELECT name, def FROM %q`, metaTable))
	if err != nil {
		return fmt.Errorf("backend %s: loading schemas: %w", e.backend, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return fmt.Errorf("backend %s: scanning schema row: %w", e.backend, err)
		}
		schema, err := decodeSchema([]byte(def))
		if err != nil {
			return fmt.Errorf("backend %s: corrupt schema for %q: %w", e.backend, name, err)
		}
		e.schemas[name] = schema
	}
	return rows.Err()
}

func (e *Engine) Backend() types.BackendID { return e.backend }

func (e *Engine) SupportsRollback() types.RollbackSupport { return types.RollbackNative }

func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

// Destroy closes the database and removes its file. In-memory databases
// vanish on close.
func (e *Engine) Destroy() error {
	if err := e.Close(); err != nil {
		return err
	}
	if e.path == MemoryPath {
		return nil
	}
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("backend %s: removing database file: %w", e.backend, err)
	}
	return nil
}

func (e *Engine) Info(ctx context.Context) (types.StorageInfo, error) {
	if e.path == MemoryPath {
		var pages, pageSize int64
		if err := e.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pages); err != nil {
			return types.StorageInfo{}, fmt.Errorf("backend %s: %w", e.backend, err)
		}
		if err := e.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
			return types.StorageInfo{}, fmt.Errorf("backend %s: %w", e.backend, err)
		}
		return types.StorageInfo{Used: pages * pageSize}, nil
	}
	fi, err := os.Stat(e.path)
	if err != nil {
		return types.StorageInfo{}, fmt.Errorf("backend %s: stat database file: %w", e.backend, err)
	}
	return types.StorageInfo{Used: fi.Size()}, nil
}

// tableExists consults sqlite_master through q so it also works inside a
// transaction.
func tableExists(ctx context.Context, q dbtx, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %q: %w", table, err)
	}
	return n > 0, nil
}

// ensureKVTable creates the default (key,value) layout for table if it
// does not exist yet.
func ensureKVTable(ctx context.Context, q dbtx, table string) error {
	_, err := q.ExecContext(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (key TEXT PRIMARY KEY, value TEXT NOT NULL)`, table))
	if err != nil {
		return fmt.Errorf("creating table %q: %w", table, err)
	}
	return nil
}

// checkPlainTable rejects raw key/value access to declared schema tables.
func (e *Engine) checkPlainTable(table string) error {
	if err := engine.ValidTableName(table); err != nil {
		return err
	}
	if _, declared := e.Schema(table); declared {
		return fmt.Errorf("table %q has a declared schema; use the query engine", table)
	}
	return nil
}

func (e *Engine) Get(ctx context.Context, table, key string) (any, bool, error) {
	if err := e.checkPlainTable(table); err != nil {
		return nil, false, err
	}
	return getKV(ctx, e.db, e.backend, table, key)
}

func getKV(ctx context.Context, q dbtx, backend types.BackendID, table, key string) (any, bool, error) {
	ok, err := tableExists(ctx, q, table)
	if err != nil || !ok {
		return nil, false, wrapBackend(backend, err)
	}
	var raw string
	err = q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %q WHERE key = ?`, table), key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("backend %s: reading %s/%s: %w", backend, table, key, err)
	}
	value, err := codec.Decode([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("backend %s: %w", backend, err)
	}
	return value, true, nil
}

func (e *Engine) Set(ctx context.Context, table, key string, value any) error {
	if err := e.checkPlainTable(table); err != nil {
		return err
	}
	if key == "" {
		return types.ErrKeyEmpty
	}
	return setKV(ctx, e.db, e.backend, table, key, value)
}

func setKV(ctx context.Context, q dbtx, backend types.BackendID, table, key string, value any) error {
	raw, err := codec.Encode(value)
	if err != nil {
		return err
	}
	if err := ensureKVTable(ctx, q, table); err != nil {
		return fmt.Errorf("backend %s: %w", backend, err)
	}
	_, err = q.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %q (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, table),
		key, string(raw))
	if err != nil {
		return fmt.Errorf("backend %s: writing %s/%s: %w", backend, table, key, err)
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, table, key string) error {
	if err := e.checkPlainTable(table); err != nil {
		return err
	}
	return deleteKV(ctx, e.db, e.backend, table, key)
}

func deleteKV(ctx context.Context, q dbtx, backend types.BackendID, table, key string) error {
	ok, err := tableExists(ctx, q, table)
	if err != nil || !ok {
		return wrapBackend(backend, err)
	}
	if _, err := q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, table), key); err != nil {
		return fmt.Errorf("backend %s: deleting %s/%s: %w", backend, table, key, err)
	}
	return nil
}

func (e *Engine) Exists(ctx context.Context, table, key string) (bool, error) {
	if err := e.checkPlainTable(table); err != nil {
		return false, err
	}
	return existsKV(ctx, e.db, e.backend, table, key)
}

func existsKV(ctx context.Context, q dbtx, backend types.BackendID, table, key string) (bool, error) {
	ok, err := tableExists(ctx, q, table)
	if err != nil || !ok {
		return false, wrapBackend(backend, err)
	}
	var n int
	if err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE key = ?`, table), key).Scan(&n); err != nil {
		return false, fmt.Errorf("backend %s: %w", backend, err)
	}
	return n > 0, nil
}

func (e *Engine) Clear(ctx context.Context, table string) error {
	if err := e.checkPlainTable(table); err != nil {
		return err
	}
	ok, err := tableExists(ctx, e.db, table)
	if err != nil || !ok {
		return wrapBackend(e.backend, err)
	}
	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q`, table)); err != nil {
		return fmt.Errorf("backend %s: clearing %q: %w", e.backend, table, err)
	}
	return nil
}

func (e *Engine) Keys(ctx context.Context, table string) ([]string, error) {
	if err := e.checkPlainTable(table); err != nil {
		return nil, err
	}
	ok, err := tableExists(ctx, e.db, table)
	if err != nil {
		return nil, wrapBackend(e.backend, err)
	}
	if !ok {
		return nil, nil
	}
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(`SELECT key FROM %q ORDER BY key`, table))
	if err != nil {
		return nil, fmt.Errorf("backend %s: listing keys of %q: %w", e.backend, table, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("backend %s: %w", e.backend, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Batch runs every operation inside one implicit transaction:
// all-or-nothing, unlike the key/value family's best-effort batches.
func (e *Engine) Batch(ctx context.Context, ops []engine.BatchOp) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("backend %s: beginning batch: %w", e.backend, err)
	}
	for i, op := range ops {
		err := e.checkPlainTable(op.Table)
		if err == nil {
			err = e.applyBatchOp(ctx, tx, op)
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("batch[%d] %s %s: %w", i, op.Kind, op.Table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("backend %s: committing batch: %w", e.backend, err)
	}
	return nil
}

func (e *Engine) applyBatchOp(ctx context.Context, tx *sql.Tx, op engine.BatchOp) error {
	switch op.Kind {
	case engine.BatchSet:
		if op.Key == "" {
			return types.ErrKeyEmpty
		}
		return setKV(ctx, tx, e.backend, op.Table, op.Key, op.Value)
	case engine.BatchDelete:
		return deleteKV(ctx, tx, e.backend, op.Table, op.Key)
	case engine.BatchClear:
		ok, err := tableExists(ctx, tx, op.Table)
		if err != nil || !ok {
			return err
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q`, op.Table))
		return err
	default:
		return fmt.Errorf("unknown batch kind %q", op.Kind)
	}
}

// CreateTable creates a physical relation: the default (key,value)
// layout when schema is nil, otherwise one column per schema column.
func (e *Engine) CreateTable(ctx context.Context, table string, schema *types.Schema) error {
	if err := engine.ValidTableName(table); err != nil {
		return err
	}
	if schema == nil {
		return wrapBackend(e.backend, ensureKVTable(ctx, e.db, table))
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	ddl, err := createTableSQL(table, schema)
	if err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("backend %s: creating table %q: %w", e.backend, table, err)
	}
	def, err := encodeSchema(schema)
	if err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %q (name, def) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET def = excluded.def`, metaTable),
		table, string(def)); err != nil {
		return fmt.Errorf("backend %s: registering schema for %q: %w", e.backend, table, err)
	}
	e.mu.Lock()
	e.schemas[table] = schema
	e.mu.Unlock()
	return nil
}

// DropTable drops the physical relation and forgets its schema.
func (e *Engine) DropTable(ctx context.Context, table string) error {
	if err := engine.ValidTableName(table); err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, table)); err != nil {
		return fmt.Errorf("backend %s: dropping table %q: %w", e.backend, table, err)
	}
	if _, err := e.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE name = ?`, metaTable), table); err != nil {
		return fmt.Errorf("backend %s: unregistering schema for %q: %w", e.backend, table, err)
	}
	e.mu.Lock()
	delete(e.schemas, table)
	e.mu.Unlock()
	return nil
}

func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE '\_%' ESCAPE '\' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("backend %s: listing tables: %w", e.backend, err)
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("backend %s: %w", e.backend, err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}

func (e *Engine) Schema(table string) (*types.Schema, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.schemas[table]
	return s, ok
}

// createTableSQL renders the DDL for a declared schema. Declared default
// values are applied in the validation layer, not in SQL, so both
// backend families behave identically.
func createTableSQL(table string, schema *types.Schema) (string, error) {
	cols := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		if err := engine.ValidTableName(col.Name); err != nil {
			return "", &types.ValidationError{Column: col.Name, Reason: "invalid column name"}
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%q %s", col.Name, col.Type.SQLType())
		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
			if col.AutoIncrement {
				b.WriteString(" AUTOINCREMENT")
			}
		}
		if col.NotNull {
			b.WriteString(" NOT NULL")
		}
		if col.Unique && !col.PrimaryKey {
			b.WriteString(" UNIQUE")
		}
		cols = append(cols, b.String())
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", table, strings.Join(cols, ", ")), nil
}

// wrapBackend adds backend context to err, passing nil through.
func wrapBackend(backend types.BackendID, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("backend %s: %w", backend, err)
}
