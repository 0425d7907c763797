package types

// ExecContext distinguishes the execution context the process runs in.
// Some backends are unavailable in restricted contexts even when their
// engine is nominally present.
type ExecContext string

const (
	// ContextMain is a normal process with durable, writable storage.
	ContextMain ExecContext = "main"

	// ContextRestricted is a sandboxed or read-only environment where
	// durable writes cannot be relied on.
	ContextRestricted ExecContext = "restricted"
)

// CapabilitySet is an immutable snapshot of what the hosting environment
// provides. It is produced once per database instance by the probe and
// threaded explicitly into the selector and the fallback supervisor;
// core logic never consults ambient state directly.
type CapabilitySet struct {
	// HasRelationalEngine reports whether a SQLite driver is registered.
	HasRelationalEngine bool

	// HasOrderedStore reports whether an ordered key/value store (bbolt)
	// can be opened, which requires a writable data directory.
	HasOrderedStore bool

	// HasExtensionStore reports whether the file-per-key stores (data
	// directory and user-profile variants) are usable.
	HasExtensionStore bool

	// HasParallelWorkers reports whether more than one OS thread is
	// available for adapter-side I/O.
	HasParallelWorkers bool

	// Context is the execution context the snapshot was taken in.
	Context ExecContext
}
