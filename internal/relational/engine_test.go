package relational

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/internal/engine"
	"github.com/mesh-intelligence/strata/pkg/types"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.db")
	e, err := Open(context.Background(), types.BackendRelationalFile, path)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	require.NoError(t, e.Set(ctx, "notes", "a", map[string]any{"text": "hello"}))

	got, ok, err := e.Get(ctx, "notes", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"text": "hello"}, got)

	exists, err := e.Exists(ctx, "notes", "a")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, e.Delete(ctx, "notes", "a"))
	_, ok, err = e.Get(ctx, "notes", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMissingTable(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, ok, err := e.Get(ctx, "nothing", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Delete and Clear on missing tables are no-ops.
	require.NoError(t, e.Delete(ctx, "nothing", "k"))
	require.NoError(t, e.Clear(ctx, "nothing"))
}

func TestKeysSorted(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, e.Set(ctx, "notes", k, k))
	}
	keys, err := e.Keys(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestSetEmptyKey(t *testing.T) {
	e := newEngine(t)
	err := e.Set(context.Background(), "notes", "", "v")
	assert.ErrorIs(t, err, types.ErrKeyEmpty)
}

func TestBatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Set(ctx, "notes", "keep", "v"))

	err := e.Batch(ctx, []engine.BatchOp{
		{Kind: engine.BatchSet, Table: "notes", Key: "new", Value: "v"},
		{Kind: engine.BatchSet, Table: "notes", Key: "", Value: "v"},
	})
	require.Error(t, err)

	// The failing entry rolled back the whole batch.
	_, ok, err := e.Get(ctx, "notes", "new")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchMixed(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Set(ctx, "notes", "old", "v"))

	require.NoError(t, e.Batch(ctx, []engine.BatchOp{
		{Kind: engine.BatchSet, Table: "notes", Key: "a", Value: int64(1)},
		{Kind: engine.BatchDelete, Table: "notes", Key: "old"},
		{Kind: engine.BatchSet, Table: "logs", Key: "x", Value: "y"},
	}))

	keys, err := e.Keys(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
	keys, err = e.Keys(ctx, "logs")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, keys)
}

func TestListTablesHidesInternal(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Set(ctx, "notes", "a", "v"))
	require.NoError(t, e.CreateTable(ctx, "people", peopleSchema()))

	tables, err := e.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes", "people"}, tables)
}

func TestDeclaredTableRejectsRawAccess(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.CreateTable(ctx, "people", peopleSchema()))

	err := e.Set(ctx, "people", "k", "v")
	require.Error(t, err)
	_, _, err = e.Get(ctx, "people", "k")
	require.Error(t, err)
}

func TestSchemaSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "strata.db")

	e, err := Open(ctx, types.BackendRelationalFile, path)
	require.NoError(t, err)
	require.NoError(t, e.CreateTable(ctx, "people", peopleSchema()))
	_, err = e.Insert(ctx, "people", types.Row{"name": "A", "age": int64(20)})
	require.NoError(t, err)
	require.NoError(t, e.Set(ctx, "notes", "a", "v"))
	require.NoError(t, e.Close())

	e, err = Open(ctx, types.BackendRelationalFile, path)
	require.NoError(t, err)
	defer e.Close()

	schema, ok := e.Schema("people")
	require.True(t, ok)
	assert.Equal(t, peopleSchema(), schema)

	n, err := e.Count(ctx, "people", types.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, ok, err := e.Get(ctx, "notes", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestDropTableForgetsSchema(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.CreateTable(ctx, "people", peopleSchema()))
	require.NoError(t, e.DropTable(ctx, "people"))

	_, ok := e.Schema("people")
	assert.False(t, ok)
	tables, err := e.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestDestroyRemovesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "strata.db")
	e, err := Open(ctx, types.BackendRelationalFile, path)
	require.NoError(t, err)
	require.NoError(t, e.Set(ctx, "notes", "a", "v"))

	require.NoError(t, e.Destroy())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestInfoReportsFileSize(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Set(ctx, "notes", "a", "v"))

	info, err := e.Info(ctx)
	require.NoError(t, err)
	assert.Greater(t, info.Used, int64(0))
	assert.Zero(t, info.Quota)
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	e, err := Open(ctx, types.BackendRelationalMemory, MemoryPath)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set(ctx, "notes", "a", "v"))
	info, err := e.Info(ctx)
	require.NoError(t, err)
	assert.Greater(t, info.Used, int64(0))
}
