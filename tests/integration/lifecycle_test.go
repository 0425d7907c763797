// End-to-end lifecycle tests over the public surface, run against every
// file-backed and in-memory backend.
package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/strata"
	"github.com/mesh-intelligence/strata/pkg/types"
)

var allBackends = []types.BackendID{
	types.BackendRelationalFile,
	types.BackendRelationalMemory,
	types.BackendBolt,
	types.BackendDir,
	types.BackendMemory,
}

var durableBackends = []types.BackendID{
	types.BackendRelationalFile,
	types.BackendBolt,
	types.BackendDir,
}

func open(t *testing.T, dir string, backend types.BackendID) *strata.DB {
	t.Helper()
	db, err := strata.Open(context.Background(), types.Config{
		Name:    "app",
		DataDir: dir,
		Backend: backend,
	})
	require.NoError(t, err)
	return db
}

func TestLifecycleAcrossBackends(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			db := open(t, t.TempDir(), backend)
			defer db.Close()

			key, err := db.Set(ctx, "notes", "a", map[string]any{"n": int64(1)})
			require.NoError(t, err)
			assert.Equal(t, "a", key)

			got, ok, err := db.Get(ctx, "notes", "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, map[string]any{"n": int64(1)}, got)

			tables, err := db.ListTables(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"notes"}, tables)

			info, err := db.Info(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, info.Used, int64(0))
		})
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	for _, backend := range durableBackends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			db := open(t, dir, backend)
			_, err := db.Set(ctx, "notes", "a", "persisted")
			require.NoError(t, err)
			require.NoError(t, db.Close())

			db = open(t, dir, backend)
			defer db.Close()
			got, ok, err := db.Get(ctx, "notes", "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "persisted", got)
		})
	}
}

func TestDestroyAcrossBackends(t *testing.T) {
	for _, backend := range durableBackends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			db := open(t, dir, backend)
			_, err := db.Set(ctx, "notes", "a", "v")
			require.NoError(t, err)
			require.NoError(t, db.Destroy())

			db = open(t, dir, backend)
			defer db.Close()
			_, ok, err := db.Get(ctx, "notes", "a")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestVersionsDoNotShareState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db1, err := strata.Open(ctx, types.Config{
		Name: "app", Version: 1, DataDir: dir, Backend: types.BackendRelationalFile,
	})
	require.NoError(t, err)
	_, err = db1.Set(ctx, "notes", "a", "v1")
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := strata.Open(ctx, types.Config{
		Name: "app", Version: 2, DataDir: dir, Backend: types.BackendRelationalFile,
	})
	require.NoError(t, err)
	defer db2.Close()
	_, ok, err := db2.Get(ctx, "notes", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransactionAcrossBackends(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			db := open(t, t.TempDir(), backend)
			defer db.Close()

			_, err := db.Set(ctx, "accounts", "alice", int64(100))
			require.NoError(t, err)
			_, err = db.Set(ctx, "accounts", "bob", int64(0))
			require.NoError(t, err)

			err = db.Transaction(ctx, []string{"accounts"}, types.ReadWrite, func(tx strata.Txn) error {
				if err := tx.Set(ctx, "accounts", "alice", int64(60)); err != nil {
					return err
				}
				return tx.Set(ctx, "accounts", "bob", int64(40))
			})
			require.NoError(t, err)

			alice, _, err := db.Get(ctx, "accounts", "alice")
			require.NoError(t, err)
			bob, _, err := db.Get(ctx, "accounts", "bob")
			require.NoError(t, err)
			assert.Equal(t, int64(60), alice)
			assert.Equal(t, int64(40), bob)

			// A failing callback leaves both balances untouched.
			err = db.Transaction(ctx, []string{"accounts"}, types.ReadWrite, func(tx strata.Txn) error {
				if err := tx.Set(ctx, "accounts", "alice", int64(0)); err != nil {
					return err
				}
				return assert.AnError
			})
			require.ErrorIs(t, err, assert.AnError)
			alice, _, err = db.Get(ctx, "accounts", "alice")
			require.NoError(t, err)
			assert.Equal(t, int64(60), alice)
		})
	}
}
