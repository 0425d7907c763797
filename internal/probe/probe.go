// Package probe inspects the hosting environment once, at database
// construction, and reports what it found as an immutable capability
// snapshot. Core logic never looks at the environment directly; the
// snapshot is threaded into the selector and the fallback supervisor.
package probe

import (
	"database/sql"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// sqliteDriver is the name modernc.org/sqlite registers under.
const sqliteDriver = "sqlite"

// Probe takes a capability snapshot for the given data directory. It
// never fails: anything unavailable degrades to false, and a directory
// that cannot be written yields a restricted context.
func Probe(dataDir string) types.CapabilitySet {
	if dataDir == "" {
		dataDir = "."
	}
	writable := dirWritable(dataDir)

	caps := types.CapabilitySet{
		HasRelationalEngine: driverRegistered(sqliteDriver),
		HasOrderedStore:     writable,
		HasExtensionStore:   writable,
		HasParallelWorkers:  runtime.GOMAXPROCS(0) > 1,
		Context:             types.ContextMain,
	}
	if !writable {
		caps.Context = types.ContextRestricted
	}
	return caps
}

func driverRegistered(name string) bool {
	for _, d := range sql.Drivers() {
		if d == name {
			return true
		}
	}
	return false
}

// dirWritable checks durable writability by creating and removing a probe
// file. The directory is created if absent; failure at any step reports
// not-writable rather than an error.
func dirWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	path := filepath.Join(dir, ".strata-probe-"+uuid.NewString())
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return false
	}
	_ = os.Remove(path)
	return true
}
