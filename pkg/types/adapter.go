package types

import "context"

// StorageInfo reports adapter storage usage in bytes. Quota <= 0 means
// unlimited. Figures are advisory; adapters may estimate.
type StorageInfo struct {
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
	Quota     int64 `json:"quota"`
}

// Adapter is the minimal key/value contract every concrete store shim
// must satisfy. Keys are opaque strings; values are opaque byte slices.
// Batch operations are best-effort: a failing key is skipped (reads) or
// reported (writes) without aborting the remaining keys.
type Adapter interface {
	// Init opens the underlying store. Idempotent.
	Init(ctx context.Context) error

	// Close releases resources without touching stored data.
	Close() error

	// Destroy removes all stored data and backing files.
	Destroy() error

	// Get returns the value for key. The boolean reports whether the
	// key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. Returns *StorageQuotaError when the
	// write would exceed the adapter's quota.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes every key.
	Clear(ctx context.Context) error

	// Keys returns all stored keys. Order is adapter-specific.
	Keys(ctx context.Context) ([]string, error)

	// GetBatch returns the values for the given keys. Absent or failing
	// keys are simply missing from the result.
	GetBatch(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetBatch stores all entries, continuing past per-key failures.
	// The returned error aggregates the failures, if any.
	SetBatch(ctx context.Context, entries map[string][]byte) error

	// DeleteBatch removes all keys, continuing past per-key failures.
	DeleteBatch(ctx context.Context, keys []string) error

	// Info reports storage usage.
	Info(ctx context.Context) (StorageInfo, error)
}
