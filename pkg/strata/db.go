package strata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/strata/internal/adapter"
	"github.com/mesh-intelligence/strata/internal/engine"
	"github.com/mesh-intelligence/strata/internal/keyvalue"
	"github.com/mesh-intelligence/strata/internal/paths"
	"github.com/mesh-intelligence/strata/internal/probe"
	"github.com/mesh-intelligence/strata/internal/relational"
	"github.com/mesh-intelligence/strata/internal/selector"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// defaultSyncQuota caps the user-profile backend, which is meant for a
// handful of small synchronized settings rather than bulk data.
const defaultSyncQuota = 100 << 10

// DB is a handle on one opened database. It is safe for concurrent use.
// The backend is fixed after Open returns; a failed primary is replaced
// by the in-memory fallback exactly once, during initialization.
type DB struct {
	cfg       types.Config
	caps      types.CapabilitySet
	requested types.BackendID
	fallback  bool

	logger    *zap.Logger
	listeners *listenerRegistry
	metrics   *metrics.Set

	mu     sync.RWMutex
	eng    engine.Engine
	closed bool
}

// Open validates cfg, probes the environment, selects a backend (or
// honors a pinned one), and binds an engine. If the selected backend
// fails to initialize, the in-memory backend is tried once as fallback;
// if both fail, the returned error is a *types.InitializationError
// retaining both causes.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	caps := probe.Probe(cfg.DataDir)
	backend := cfg.Backend
	if backend == "" {
		backend = selector.Select(cfg.EffectiveProvider(), caps)
	}

	db := &DB{
		cfg:       cfg,
		caps:      caps,
		requested: backend,
		logger:    o.logger,
		listeners: newListenerRegistry(),
		metrics:   metrics.NewSet(),
	}
	for _, l := range o.listeners {
		db.listeners.add(l.event, l.fn)
	}

	eng, err := buildEngine(ctx, cfg, backend)
	if err != nil {
		if backend == types.BackendMemory {
			return nil, &types.InitializationError{Primary: backend, PrimaryErr: err}
		}
		feng, ferr := buildEngine(ctx, cfg, types.BackendMemory)
		if ferr != nil {
			return nil, &types.InitializationError{
				Primary:     backend,
				Fallback:    types.BackendMemory,
				PrimaryErr:  err,
				FallbackErr: ferr,
			}
		}
		db.logger.Warn("primary backend failed, continuing on fallback",
			zap.String("primary", string(backend)),
			zap.String("fallback", string(types.BackendMemory)),
			zap.Error(err))
		eng = feng
		db.fallback = true
	}
	db.eng = eng

	db.logger.Info("database ready",
		zap.String("name", cfg.Name),
		zap.String("backend", string(eng.Backend())),
		zap.Bool("fallback", db.fallback))
	db.emit(types.EventReady, types.ReadyPayload{Backend: eng.Backend(), Fallback: db.fallback})
	return db, nil
}

// buildEngine constructs the engine for one concrete backend. Storage
// names incorporate the schema version so versions never share state.
func buildEngine(ctx context.Context, cfg types.Config, backend types.BackendID) (engine.Engine, error) {
	name := fmt.Sprintf("%s-v%d", cfg.Name, cfg.EffectiveVersion())
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	switch backend {
	case types.BackendRelationalFile:
		return relational.Open(ctx, backend, filepath.Join(dataDir, name+".db"))
	case types.BackendRelationalMemory:
		return relational.Open(ctx, backend, relational.MemoryPath)
	case types.BackendBolt:
		return initKV(ctx, backend, adapter.NewBolt(filepath.Join(dataDir, name+".bolt")))
	case types.BackendDir:
		return initKV(ctx, backend, adapter.NewDir(filepath.Join(dataDir, name), optionQuota(cfg, 0), backend))
	case types.BackendSync:
		dir, err := syncDir(cfg)
		if err != nil {
			return nil, err
		}
		return initKV(ctx, backend, adapter.NewDir(filepath.Join(dir, name), optionQuota(cfg, defaultSyncQuota), backend))
	case types.BackendMemory:
		return initKV(ctx, backend, adapter.NewMemory(optionQuota(cfg, 0)))
	default:
		return nil, &types.ConfigurationError{Field: "backend", Reason: "unknown backend " + string(backend)}
	}
}

func initKV(ctx context.Context, backend types.BackendID, a types.Adapter) (engine.Engine, error) {
	e := keyvalue.New(backend, a)
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// syncDir is the user-profile directory for the sync backend, overridable
// through the "sync_dir" option.
func syncDir(cfg types.Config) (string, error) {
	if v, ok := cfg.Options["sync_dir"].(string); ok && v != "" {
		return v, nil
	}
	return paths.DefaultConfigDir()
}

// optionQuota reads the "quota" option in bytes, tolerating the numeric
// types a decoded config file may carry.
func optionQuota(cfg types.Config, fallback int64) int64 {
	switch v := cfg.Options["quota"].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return fallback
	}
}

// Backend returns the backend actually serving this database.
func (db *DB) Backend() types.BackendID {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.eng.Backend()
}

// Fallback reports whether initialization swapped to the in-memory
// fallback.
func (db *DB) Fallback() bool { return db.fallback }

// Capabilities returns the environment snapshot taken at Open.
func (db *DB) Capabilities() types.CapabilitySet { return db.caps }

// SupportsRollback reports the transaction rollback guarantee of the
// bound backend.
func (db *DB) SupportsRollback() types.RollbackSupport {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.eng.SupportsRollback()
}

// guard returns the engine for op, failing fast once the database is
// closed or destroyed.
func (db *DB) guard(op string) (engine.Engine, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, &types.ConnectionError{Backend: db.requested, Op: op, Err: types.ErrClosed}
	}
	db.count(op)
	return db.eng, nil
}

func (db *DB) count(op string) {
	db.metrics.GetOrCreateCounter(fmt.Sprintf(`strata_ops_total{op=%q}`, op)).Inc()
}

// WritePrometheus writes this database's operation counters in Prometheus
// text format.
func (db *DB) WritePrometheus(w io.Writer) {
	db.metrics.WritePrometheus(w)
}

// Close releases the backend. Closing twice is an error.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return &types.ConnectionError{Backend: db.requested, Op: "close", Err: types.ErrClosed}
	}
	db.closed = true
	eng := db.eng
	db.mu.Unlock()

	err := eng.Close()
	db.logger.Info("database closed", zap.String("name", db.cfg.Name), zap.Error(err))
	db.emit(types.EventClose, nil)
	return err
}

// Destroy closes the backend and removes its stored state.
func (db *DB) Destroy() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return &types.ConnectionError{Backend: db.requested, Op: "destroy", Err: types.ErrClosed}
	}
	db.closed = true
	eng := db.eng
	db.mu.Unlock()

	err := eng.Destroy()
	db.logger.Info("database destroyed", zap.String("name", db.cfg.Name), zap.Error(err))
	db.emit(types.EventDestroy, nil)
	return err
}

// Info reports storage usage of the bound backend.
func (db *DB) Info(ctx context.Context) (types.StorageInfo, error) {
	eng, err := db.guard("info")
	if err != nil {
		return types.StorageInfo{}, err
	}
	return eng.Info(ctx)
}

// Get returns the record stored under table/key. The second result is
// false when no record exists.
func (db *DB) Get(ctx context.Context, table, key string) (any, bool, error) {
	eng, err := db.guard("get")
	if err != nil {
		return nil, false, err
	}
	return eng.Get(ctx, table, key)
}

// Set stores value under table/key and returns the key used. An empty
// key is replaced by a generated time-ordered identifier.
func (db *DB) Set(ctx context.Context, table, key string, value any) (string, error) {
	eng, err := db.guard("set")
	if err != nil {
		return "", err
	}
	if key == "" {
		key = uuid.Must(uuid.NewV7()).String()
	}
	if err := eng.Set(ctx, table, key, value); err != nil {
		return "", db.noteErr("set", err)
	}
	return key, nil
}

// Delete removes the record under table/key. Deleting a missing record
// is not an error.
func (db *DB) Delete(ctx context.Context, table, key string) error {
	eng, err := db.guard("delete")
	if err != nil {
		return err
	}
	return eng.Delete(ctx, table, key)
}

// Exists reports whether a record is stored under table/key.
func (db *DB) Exists(ctx context.Context, table, key string) (bool, error) {
	eng, err := db.guard("exists")
	if err != nil {
		return false, err
	}
	return eng.Exists(ctx, table, key)
}

// Clear removes every record of table.
func (db *DB) Clear(ctx context.Context, table string) error {
	eng, err := db.guard("clear")
	if err != nil {
		return err
	}
	return eng.Clear(ctx, table)
}

// Keys lists the keys of table in ascending order.
func (db *DB) Keys(ctx context.Context, table string) ([]string, error) {
	eng, err := db.guard("keys")
	if err != nil {
		return nil, err
	}
	return eng.Keys(ctx, table)
}

// CreateTable declares a table. A nil schema declares the default
// key/value layout.
func (db *DB) CreateTable(ctx context.Context, table string, schema *types.Schema) error {
	eng, err := db.guard("create_table")
	if err != nil {
		return err
	}
	return eng.CreateTable(ctx, table, schema)
}

// DropTable removes a table declaration.
func (db *DB) DropTable(ctx context.Context, table string) error {
	eng, err := db.guard("drop_table")
	if err != nil {
		return err
	}
	return eng.DropTable(ctx, table)
}

// ListTables lists known tables in ascending order.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	eng, err := db.guard("list_tables")
	if err != nil {
		return nil, err
	}
	return eng.ListTables(ctx)
}

// Schema returns the declared schema of table, if any.
func (db *DB) Schema(table string) (*types.Schema, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, false
	}
	return db.eng.Schema(table)
}

// noteErr surfaces a write failure on the event bus, then returns err
// unchanged. Quota violations get the dedicated warning event; other
// backend failures emit EventError. Validation failures are the
// caller's mistake and stay off the bus.
func (db *DB) noteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var qe *types.StorageQuotaError
	if errors.As(err, &qe) {
		db.logger.Warn("storage quota exceeded",
			zap.String("backend", string(qe.Backend)),
			zap.Int64("used", qe.Used),
			zap.Int64("quota", qe.Quota))
		db.emit(types.EventQuotaWarning, types.QuotaWarningPayload{
			Backend: qe.Backend,
			Info:    types.StorageInfo{Used: qe.Used, Quota: qe.Quota},
		})
		return err
	}
	var ve *types.ValidationError
	if !errors.As(err, &ve) {
		db.logger.Error("backend operation failed",
			zap.String("op", op),
			zap.Error(err))
		db.emit(types.EventError, types.ErrorPayload{Op: op, Err: err})
	}
	return err
}
