package types

// BackendID identifies a concrete storage engine. The set is closed: the
// selector only ever returns one of the constants below, and exactly one
// backend is active per database instance.
type BackendID string

const (
	// BackendRelationalFile is a SQLite database file on disk. Preferred
	// relational backend; requires a writable data directory.
	BackendRelationalFile BackendID = "relational-file"

	// BackendRelationalMemory is an in-memory SQLite database. Used when a
	// relational engine is present but durable storage is not.
	BackendRelationalMemory BackendID = "relational-memory"

	// BackendBolt is a bbolt ordered key/value store file.
	BackendBolt BackendID = "kv-bolt"

	// BackendDir is a file-per-key directory store under the data
	// directory. Largest-quota key/value backend.
	BackendDir BackendID = "kv-dir"

	// BackendSync is a file-per-key store under the user configuration
	// directory. Small quota; contents travel with the user profile.
	BackendSync BackendID = "kv-sync"

	// BackendMemory is an in-process map with no durability. Always
	// available; the fallback of last resort.
	BackendMemory BackendID = "kv-memory"
)

// Family partitions backends into the two structural data models.
type Family string

const (
	FamilyRelational Family = "relational"
	FamilyKeyValue   Family = "keyvalue"
)

// Family reports which data-model family the backend belongs to.
func (b BackendID) Family() Family {
	switch b {
	case BackendRelationalFile, BackendRelationalMemory:
		return FamilyRelational
	default:
		return FamilyKeyValue
	}
}

// Valid reports whether b is one of the closed set of backend identifiers.
func (b BackendID) Valid() bool {
	switch b {
	case BackendRelationalFile, BackendRelationalMemory,
		BackendBolt, BackendDir, BackendSync, BackendMemory:
		return true
	}
	return false
}

// RollbackSupport describes how faithfully a backend honors rollback.
type RollbackSupport string

const (
	// RollbackNative means rollback maps onto the engine's own ROLLBACK.
	RollbackNative RollbackSupport = "native"

	// RollbackBestEffort means writes are applied eagerly and rollback
	// replays an undo log. Concurrent external writers can observe or
	// clobber intermediate state.
	RollbackBestEffort RollbackSupport = "best-effort"
)
